package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const itineraryHistoryLimit = 5

// Manager owns every ConversationState in the process. It is an injectable
// store, not a package-level singleton, so tests can build instances with
// short TTLs. Expiry is handled by go-cache: lazily on read, plus a periodic
// janitor sweep.
//
// Within one process a session is expected to be mutated by a single in-flight
// request; concurrent updates to the same session resolve last-write-wins.
type Manager struct {
	mu     sync.Mutex
	store  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewManager(ttl, sweepInterval time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &Manager{
		store:  cache.New(ttl, sweepInterval),
		ttl:    ttl,
		logger: logger,
	}
}

// GetOrCreate never fails: an absent or expired session yields a fresh state
// in phase initial. Expired context never leaks into the replacement.
func (m *Manager) GetOrCreate(sessionID string) *types.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.store.Get(sessionID); ok {
		return v.(*types.ConversationState)
	}

	now := time.Now()
	state := &types.ConversationState{
		SessionID: sessionID,
		Context: types.ConversationContext{
			Phase:       types.PhaseInitial,
			Preferences: map[string]string{},
		},
		Metadata: types.SessionMetadata{
			StartTime:    now,
			LastActivity: now,
		},
	}
	m.store.Set(sessionID, state, m.ttl)
	m.logger.Debug("Created conversation state", slog.String("session_id", sessionID))
	return state
}

// Get returns a point-in-time copy of the state without creating one. The
// copy has its own message slice, preference map and context, so callers can
// read or encode it while a background generation keeps updating the live
// session.
func (m *Manager) Get(sessionID string) (*types.ConversationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store.Get(sessionID)
	if !ok {
		return nil, false
	}
	return snapshotState(v.(*types.ConversationState)), true
}

func snapshotState(state *types.ConversationState) *types.ConversationState {
	out := *state
	out.Messages = append([]types.ConversationMessage(nil), state.Messages...)
	out.ItineraryHistory = append([]*types.Itinerary(nil), state.ItineraryHistory...)
	out.Metadata.Errors = append([]string(nil), state.Metadata.Errors...)
	out.Context.Destinations = append([]types.DestinationSpec(nil), state.Context.Destinations...)
	out.Context.Constraints = append([]types.TravelConstraint(nil), state.Context.Constraints...)
	if state.Context.Preferences != nil {
		out.Context.Preferences = make(map[string]string, len(state.Context.Preferences))
		for k, v := range state.Context.Preferences {
			out.Context.Preferences[k] = v
		}
	}
	if state.Context.LastIntent != nil {
		li := *state.Context.LastIntent
		out.Context.LastIntent = &li
	}
	return &out
}

// Update merges one turn into the session. Messages are append-only; context
// scalars overwrite when set; the preferences map merges key by key, never
// wholesale. The TTL slides from every update, matching expiry measured from
// last activity.
func (m *Manager) Update(sessionID string, message *types.ConversationMessage, itinerary *types.Itinerary, upd *types.ContextUpdate) *types.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()

	var state *types.ConversationState
	if v, ok := m.store.Get(sessionID); ok {
		state = v.(*types.ConversationState)
	} else {
		now := time.Now()
		state = &types.ConversationState{
			SessionID: sessionID,
			Context: types.ConversationContext{
				Phase:       types.PhaseInitial,
				Preferences: map[string]string{},
			},
			Metadata: types.SessionMetadata{StartTime: now, LastActivity: now},
		}
	}

	if message != nil {
		if message.Timestamp.IsZero() {
			message.Timestamp = time.Now()
		}
		state.Messages = append(state.Messages, *message)
		state.Metadata.MessageCount++
	}

	if itinerary != nil {
		if state.CurrentItinerary != nil {
			state.ItineraryHistory = append(state.ItineraryHistory, state.CurrentItinerary)
			if len(state.ItineraryHistory) > itineraryHistoryLimit {
				state.ItineraryHistory = state.ItineraryHistory[len(state.ItineraryHistory)-itineraryHistoryLimit:]
			}
		}
		state.CurrentItinerary = itinerary
	}

	if upd != nil {
		mergeContext(&state.Context, upd)
	}

	state.Metadata.LastActivity = time.Now()
	m.store.Set(sessionID, state, m.ttl)
	return state
}

// RecordError appends a turn-level error note to the session metadata.
func (m *Manager) RecordError(sessionID, note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store.Get(sessionID)
	if !ok {
		return
	}
	state := v.(*types.ConversationState)
	state.Metadata.Errors = append(state.Metadata.Errors, note)
	m.store.Set(sessionID, state, m.ttl)
}

func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Delete(sessionID)
}

func mergeContext(ctx *types.ConversationContext, upd *types.ContextUpdate) {
	if upd.Destinations != nil {
		ctx.Destinations = upd.Destinations
	}
	if upd.Origin != "" {
		ctx.Origin = upd.Origin
	}
	if upd.TotalDays > 0 {
		ctx.TotalDays = upd.TotalDays
	}
	if upd.StartDate != "" {
		ctx.StartDate = upd.StartDate
	}
	if len(upd.Preferences) > 0 {
		if ctx.Preferences == nil {
			ctx.Preferences = map[string]string{}
		}
		for k, v := range upd.Preferences {
			ctx.Preferences[k] = v
		}
	}
	if len(upd.Constraints) > 0 {
		ctx.Constraints = append(ctx.Constraints, upd.Constraints...)
	}
	if upd.Phase != "" {
		ctx.Phase = upd.Phase
	}
	if upd.LastIntent != nil {
		ctx.LastIntent = upd.LastIntent
	}
}
