package session

import (
	"sync"

	"go.uber.org/zap"
)

// Store keeps the selected symbol and mirrors it to disk.
type Store struct {
	mu       sync.Mutex
	state    *State
	filePath string
	logger   *zap.Logger
}

// NewStore loads the saved session, falling back to defaultSymbol when none exists.
// An empty filePath keeps the session in memory only.
func NewStore(filePath, defaultSymbol string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	state := &State{}
	if filePath != "" {
		var err error
		if state, err = LoadState(filePath); err != nil {
			return nil, err
		}
	}
	if state.Symbol == "" {
		state.Symbol = defaultSymbol
	} else {
		logger.Info("session restored", zap.String("symbol", state.Symbol))
	}
	return &Store{state: state, filePath: filePath, logger: logger}, nil
}

// Symbol returns the persisted symbol.
func (s *Store) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Symbol
}

// SaveSymbol records symbol as the current choice.
func (s *Store) SaveSymbol(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Symbol = symbol
	if s.filePath == "" {
		return nil
	}
	return SaveState(s.filePath, s.state)
}
