// Package storage provides the optional delivery journal.
//
// Every notification the poll loop tries to send is appended with its
// outcome. The journal is history for operators (/history, debugging);
// the poll loop never reads it back to restore its state.
package storage
