// Package acquire decides where a user's timetable comes from: the portal,
// the local cache, or nowhere.
package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"timetable/internal/ics"
	"timetable/internal/lesson"
	appLog "timetable/internal/log"
	"timetable/internal/model"
	"timetable/internal/portal"
)

var (
	// ErrTransport wraps every fetch failure that is not an authentication
	// failure. It is fatal for the attempt.
	ErrTransport = errors.New("acquire: transport failure")

	// ErrOffline is returned by refreshes when no probe host answers.
	ErrOffline = errors.New("acquire: offline")

	// ErrNoStoredCredentials means no decryptable password is stored for the user.
	ErrNoStoredCredentials = errors.New("acquire: no stored credentials")
)

// Prober reports internet reachability.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// Cache stores the last raw calendar per user.
type Cache interface {
	Exists(username string) bool
	Load(username string) ([]byte, error)
	Save(username string, raw []byte) error
}

// Credentials verifies and remembers passwords.
type Credentials interface {
	Verify(username, password string) bool
	Save(username, password string) error
	SaveEncrypted(username, password string) error
	LoadDecrypted(username string) (string, bool)
	SetLastUser(username string) error
}

// Parser turns raw calendar text into records.
type Parser interface {
	Parse(body []byte) ([]ics.Record, error)
}

// Result is what an acquisition produced. Lessons is nil for
// WrongCredentials and NoConnection.
type Result struct {
	Outcome Outcome
	Lessons []model.Lesson
}

// Deps are the controller's collaborators.
type Deps struct {
	Prober      Prober
	Cache       Cache
	Credentials Credentials
	Fetcher     portal.Fetcher
	Parser      Parser
	Overrides   lesson.Overrides

	// FetchTimeout bounds one remote fetch. Zero leaves it to the fetcher.
	FetchTimeout time.Duration
	// Location is the zone of the calendar's floating timestamps.
	Location *time.Location
}

// Controller runs acquisitions and refreshes. Work for the same user is
// serialized; different users do not block each other.
type Controller struct {
	deps Deps

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	refreshes singleflight.Group
}

func New(deps Deps) *Controller {
	if deps.Parser == nil {
		deps.Parser = ics.Parser{}
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Controller{
		deps:  deps,
		locks: make(map[string]*sync.Mutex),
	}
}

func (c *Controller) lock(username string) func() {
	c.mu.Lock()
	l, ok := c.locks[username]
	if !ok {
		l = &sync.Mutex{}
		c.locks[username] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Acquire runs one login attempt.
//
// Offline, the cache is served when it exists and the password matches the
// stored hash. Online, a verified cache is preferred over the slower portal;
// otherwise the portal is asked. A returned error is fatal for the attempt
// and never accompanies an Outcome.
func (c *Controller) Acquire(ctx context.Context, username, password string) (Result, error) {
	unlock := c.lock(username)
	defer unlock()

	attempt := uuid.NewString()
	started := time.Now()
	appLog.Info("acquisition start", "attempt", attempt, "user", username)

	res, err := c.acquire(ctx, attempt, username, password)
	if err != nil {
		appLog.Error("acquisition failed", err, "attempt", attempt, "user", username)
		return Result{}, err
	}

	appLog.Info("acquisition done", "attempt", attempt, "user", username,
		"outcome", res.Outcome, "lessons", len(res.Lessons), "elapsed", time.Since(started).Round(time.Millisecond))
	return res, nil
}

func (c *Controller) acquire(ctx context.Context, attempt, username, password string) (Result, error) {
	cached := c.deps.Cache.Exists(username)

	if !c.deps.Prober.Reachable(ctx) {
		appLog.Info("offline", "attempt", attempt, "cached", cached)
		if !cached {
			return Result{Outcome: NoConnection}, nil
		}
		if !c.deps.Credentials.Verify(username, password) {
			return Result{Outcome: WrongCredentials}, nil
		}
		return c.serveCache(attempt, username, password)
	}

	if cached {
		if c.deps.Credentials.Verify(username, password) {
			return c.serveCache(attempt, username, password)
		}
		appLog.Info("stored hash does not match, asking portal", "attempt", attempt)
	}

	body, err := c.fetch(ctx, username, password)
	if errors.Is(err, portal.ErrAuthentication) {
		return Result{Outcome: WrongCredentials}, nil
	}
	if err != nil {
		return Result{}, err
	}

	lessons, err := c.lessons(body, username)
	if err != nil {
		return Result{}, err
	}
	if err := c.deps.Cache.Save(username, body); err != nil {
		return Result{}, fmt.Errorf("acquire: save cache: %w", err)
	}
	c.remember(attempt, username, password)

	return Result{Outcome: NewUserFetched, Lessons: lessons}, nil
}

func (c *Controller) serveCache(attempt, username, password string) (Result, error) {
	raw, err := c.deps.Cache.Load(username)
	if err != nil {
		return Result{}, fmt.Errorf("acquire: load cache: %w", err)
	}
	lessons, err := c.lessons(raw, username)
	if err != nil {
		return Result{}, err
	}
	c.remember(attempt, username, password)
	return Result{Outcome: LocalCacheServed, Lessons: lessons}, nil
}

// fetch asks the portal, wrapping every non-authentication error in ErrTransport.
func (c *Controller) fetch(ctx context.Context, username, password string) ([]byte, error) {
	if c.deps.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deps.FetchTimeout)
		defer cancel()
	}

	body, err := c.deps.Fetcher.FetchCalendar(ctx, username, password)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, portal.ErrAuthentication) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrTransport, err)
}

func (c *Controller) lessons(raw []byte, username string) ([]model.Lesson, error) {
	records, err := c.deps.Parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	lessons, err := lesson.Extract(records, c.deps.Location)
	if err != nil {
		return nil, err
	}
	lesson.AssignColors(lessons, username, c.deps.Overrides)
	return lessons, nil
}

// remember re-saves the hash with a fresh salt and the encrypted copy.
// Failures are logged; the attempt's outcome stands.
func (c *Controller) remember(attempt, username, password string) {
	creds := c.deps.Credentials
	if err := creds.Save(username, password); err != nil {
		appLog.Error("save credential hash failed", err, "attempt", attempt, "user", username)
	}
	if err := creds.SaveEncrypted(username, password); err != nil {
		appLog.Error("save encrypted credential failed", err, "attempt", attempt, "user", username)
	}
	if err := creds.SetLastUser(username); err != nil {
		appLog.Error("save last user failed", err, "attempt", attempt, "user", username)
	}
}

// Refresh downloads the calendar again and overwrites the cache. Concurrent
// refreshes for one user and password share a single download, and a refresh
// never overlaps an acquisition for the same user. The shared download is
// detached from the callers' contexts; a caller whose ctx ends stops waiting
// without cancelling it for the others.
func (c *Controller) Refresh(ctx context.Context, username, password string) ([]model.Lesson, error) {
	work := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan(flightKey(username, password), func() (any, error) {
		return c.refresh(work, username, password)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		// Callers recolour their copy.
		return slices.Clone(r.Val.([]model.Lesson)), nil
	}
}

// flightKey separates refreshes by password so a caller is never handed the
// result of a download made with someone else's password.
func flightKey(username, password string) string {
	sum := sha256.Sum256([]byte(password))
	return username + "\x00" + hex.EncodeToString(sum[:])
}

func (c *Controller) refresh(ctx context.Context, username, password string) ([]model.Lesson, error) {
	unlock := c.lock(username)
	defer unlock()

	attempt := uuid.NewString()
	appLog.Info("refresh start", "attempt", attempt, "user", username)

	if !c.deps.Prober.Reachable(ctx) {
		return nil, ErrOffline
	}

	body, err := c.fetch(ctx, username, password)
	if err != nil {
		return nil, err
	}
	lessons, err := c.lessons(body, username)
	if err != nil {
		return nil, err
	}
	if err := c.deps.Cache.Save(username, body); err != nil {
		return nil, fmt.Errorf("acquire: save cache: %w", err)
	}
	c.remember(attempt, username, password)

	appLog.Info("refresh done", "attempt", attempt, "user", username, "lessons", len(lessons))
	return lessons, nil
}

// ForceRemoteRefresh is Refresh reduced to success or failure. It does not
// change the outcome of an earlier Acquire.
func (c *Controller) ForceRemoteRefresh(ctx context.Context, username, password string) bool {
	if _, err := c.Refresh(ctx, username, password); err != nil {
		appLog.Warn("remote refresh failed", "user", username, "err", err)
		return false
	}
	return true
}

// Cached parses the user's cached calendar without contacting the portal or
// touching credentials.
func (c *Controller) Cached(username string) ([]model.Lesson, error) {
	unlock := c.lock(username)
	defer unlock()

	raw, err := c.deps.Cache.Load(username)
	if err != nil {
		return nil, fmt.Errorf("acquire: load cache: %w", err)
	}
	return c.lessons(raw, username)
}

// RefreshStored refreshes with the password recovered from the encrypted
// credential copy. The copy is a convenience only; a portal rejection is
// returned as the error wrapping portal.ErrAuthentication.
func (c *Controller) RefreshStored(ctx context.Context, username string) ([]model.Lesson, error) {
	password, ok := c.deps.Credentials.LoadDecrypted(username)
	if !ok {
		return nil, ErrNoStoredCredentials
	}
	return c.Refresh(ctx, username, password)
}
