package storage

// Package storage persists job run history.
//
// It records what fired and how it went; it never persists timer state.
// Timers are rebuilt from config on every start.
