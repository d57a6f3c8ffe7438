package domain

import (
	"sort"
	"sync"
)

type Role string

const (
	RoleHost     Role = "host"
	RoleAudience Role = "audience"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleAudience
}

type SessionState string

const (
	SessionIdle            SessionState = "idle"
	SessionJoining         SessionState = "joining"
	SessionJoinedIdle      SessionState = "joined-idle"
	SessionJoinedStreaming SessionState = "joined-streaming"
	SessionLeaving         SessionState = "leaving"
)

// Joined reports whether the state counts as being in a channel.
func (s SessionState) Joined() bool {
	return s == SessionJoinedIdle || s == SessionJoinedStreaming
}

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// LocalTrack is a capture track owned by one session.
type LocalTrack struct {
	ID          string    `json:"id"`
	Kind        MediaKind `json:"kind"`
	Label       string    `json:"label"`
	Enabled     bool      `json:"enabled"`
	Placeholder bool      `json:"placeholder"`
}

// PlaceholderTrack stands in for a capture device the user refused.
func PlaceholderTrack(kind MediaKind) LocalTrack {
	return LocalTrack{
		ID:          "placeholder-" + string(kind),
		Kind:        kind,
		Label:       "placeholder",
		Enabled:     true,
		Placeholder: true,
	}
}

// RemoteTrack is a media track received from another participant.
type RemoteTrack struct {
	ID    string    `json:"id"`
	Kind  MediaKind `json:"kind"`
	Codec string    `json:"codec,omitempty"`
}

type Participant struct {
	UID   string       `json:"uid"`
	Video *RemoteTrack `json:"video,omitempty"`
	Audio *RemoteTrack `json:"audio,omitempty"`
}

// ParticipantSet holds remote participants keyed by uid. A uid is present at most once.
type ParticipantSet struct {
	mu      sync.RWMutex
	members map[string]Participant
}

func NewParticipantSet() *ParticipantSet {
	return &ParticipantSet{members: make(map[string]Participant)}
}

// Add inserts p or merges its tracks into the existing entry.
// It returns true when the uid was not present before.
func (ps *ParticipantSet) Add(p Participant) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	existing, ok := ps.members[p.UID]
	if !ok {
		ps.members[p.UID] = p
		return true
	}
	if p.Video != nil {
		existing.Video = p.Video
	}
	if p.Audio != nil {
		existing.Audio = p.Audio
	}
	ps.members[p.UID] = existing
	return false
}

// Remove deletes uid and reports whether it was present.
func (ps *ParticipantSet) Remove(uid string) (Participant, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.members[uid]
	if ok {
		delete(ps.members, uid)
	}
	return p, ok
}

func (ps *ParticipantSet) Get(uid string) (Participant, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.members[uid]
	return p, ok
}

func (ps *ParticipantSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.members)
}

// List returns participants sorted by uid.
func (ps *ParticipantSet) List() []Participant {
	ps.mu.RLock()
	out := make([]Participant, 0, len(ps.members))
	for _, p := range ps.members {
		out = append(out, p)
	}
	ps.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Clear removes everyone and returns the removed uids.
func (ps *ParticipantSet) Clear() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	uids := make([]string, 0, len(ps.members))
	for uid := range ps.members {
		uids = append(uids, uid)
	}
	ps.members = make(map[string]Participant)
	sort.Strings(uids)
	return uids
}
