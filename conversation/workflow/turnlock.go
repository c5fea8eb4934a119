package workflow

import "sync"

// turnLock serializes turns per game. Entries are dropped once no turn
// holds or waits for them.
type turnLock struct {
	mu    sync.Mutex
	games map[string]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func newTurnLock() *turnLock {
	return &turnLock{games: make(map[string]*gameLock)}
}

// lock blocks until the turn of gameID is free and returns its release func
func (l *turnLock) lock(gameID string) func() {
	l.mu.Lock()
	gl, ok := l.games[gameID]
	if !ok {
		gl = &gameLock{}
		l.games[gameID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.mu.Lock()

	return func() {
		gl.mu.Unlock()

		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.games, gameID)
		}
		l.mu.Unlock()
	}
}

func (l *turnLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.games)
}
