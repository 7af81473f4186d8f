package registry

import (
	"fmt"
	"sync"

	"github.com/cohub/reservations/session"
	"gorm.io/gorm"
)

// Context is one named scheduler context: its settings plus the services
// built from them, cached after first use (spec §4/§6: "per-context
// service factories with lazy caching").
type Context struct {
	name     string
	settings Settings

	mu       sync.Mutex
	db       *gorm.DB
	sessions *session.Sessions
}

// Name returns the name this context was registered under.
func (c *Context) Name() string { return c.name }

// Settings returns the settings this context was built from.
func (c *Context) Settings() Settings { return c.settings }

// DB lazily opens (or reuses) the underlying *gorm.DB.
func (c *Context) DB() (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dbLocked()
}

func (c *Context) dbLocked() (*gorm.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	db, err := c.settings.OpenDB(c.settings.DSN)
	if err != nil {
		return nil, err
	}
	c.db = db
	return c.db, nil
}

// Sessions lazily builds (or reuses) this context's write/read session
// pair.
func (c *Context) Sessions() (*session.Sessions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions != nil {
		return c.sessions, nil
	}
	db, err := c.dbLocked()
	if err != nil {
		return nil, err
	}
	sessions, err := c.settings.SessionProviderFactory(db)
	if err != nil {
		return nil, fmt.Errorf("registry: building sessions for context %q: %w", c.name, err)
	}
	c.sessions = sessions
	return c.sessions, nil
}
