package models

import "time"

// Session status constants
const (
	SessionActive   = "active"
	SessionArchived = "archived"
)

// Lifecycle phase constants (derived, never stored)
const (
	PhaseOpen          = "open"
	PhaseInvitesLocked = "invites_locked"
	PhaseTieBreak      = "tiebreak"
	PhaseCompleted     = "completed"
)

// Member role constants
const (
	RoleOwner = "owner"
	RoleVoter = "voter"
)

// List status constants
const (
	ListDraft     = "draft"
	ListSubmitted = "submitted"
)

// Request types

type CreateSessionRequest struct {
	Title         string `json:"title"`
	RequiredNames int    `json:"required_names"`
	NameFocus     string `json:"name_focus"`
	MaxOwners     int    `json:"max_owners"`
}

type JoinSessionRequest struct {
	Token   string `json:"token"`
	AsOwner bool   `json:"as_owner"`
}

type InviteParticipantsRequest struct {
	Emails []string `json:"emails"`
}

// self_ranks maps name -> rank (1 to required_names, 0 means unranked)
type SaveListRequest struct {
	Names     []string       `json:"names"`
	SelfRanks map[string]int `json:"self_ranks"`
	Finalize  bool           `json:"finalize"`
}

type SubmitScoreRequest struct {
	OwnerUID string `json:"owner_uid"`
	Name     string `json:"name"`
	Value    int    `json:"value"` // 0 clears the name's rank
}

type CompleteScoresRequest struct {
	OwnerUID string         `json:"owner_uid"`
	Ranks    map[string]int `json:"ranks"`
}

type TieBreakVoteRequest struct {
	Ranks map[string]int `json:"ranks"`
}

// Response types

type CreateSessionResponse struct {
	SessionID  string `json:"session_id"`
	OwnerToken string `json:"owner_token"`
	VoterToken string `json:"voter_token"`
}

type JoinSessionResponse struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

type InviteResult struct {
	Email  string `json:"email"`
	Status string `json:"status"` // "invited", "resent", or "invalid"
}

type InviteParticipantsResponse struct {
	Results []InviteResult `json:"results"`
}

type InviteInfoResponse struct {
	Title         string `json:"title"`
	RequiredNames int    `json:"required_names"`
	NameFocus     string `json:"name_focus"`
	TemplateReady bool   `json:"template_ready"`
}

type SaveListResponse struct {
	Status      string         `json:"status"`
	Names       []string       `json:"names"`
	SelfRanks   map[string]int `json:"self_ranks"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
}

type SubmitScoreResponse struct {
	OwnerUID string         `json:"owner_uid"`
	Scores   map[string]int `json:"scores"`
}

type CompleteScoresResponse struct {
	OwnerUID    string    `json:"owner_uid"`
	CompletedAt time.Time `json:"completed_at"`
}

type LockInvitesResponse struct {
	InvitesLocked bool `json:"invites_locked"`
}

type StartTieBreakResponse struct {
	Names     []string  `json:"names"`
	StartedAt time.Time `json:"started_at"`
}

type TieBreakVoteResponse struct {
	Submitted bool `json:"submitted"`
}

type CloseTieBreakResponse struct {
	Winners []string       `json:"winners"`
	Ranking []AggregateRow `json:"ranking"`
}

type ArchiveSessionResponse struct {
	Status string `json:"status"`
}

// Domain types

type Session struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedBy     string    `json:"created_by"`
	RequiredNames int       `json:"required_names"`
	NameFocus     string    `json:"name_focus"`
	MaxOwners     int       `json:"max_owners"`
	Status        string    `json:"status"`
	InvitesLocked bool      `json:"invites_locked"`
	OwnerToken    string    `json:"-"` // Never expose in JSON
	VoterToken    string    `json:"-"` // Never expose in JSON
	CreatedAt     time.Time `json:"created_at"`
}

type Member struct {
	SessionID string    `json:"-"`
	UID       string    `json:"uid"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

type Invite struct {
	SessionID string    `json:"-"`
	Email     string    `json:"email"`
	Token     string    `json:"-"` // Never expose in JSON
	CreatedAt time.Time `json:"created_at"`
}

type List struct {
	SessionID   string         `json:"-"`
	OwnerUID    string         `json:"owner_uid"`
	Status      string         `json:"status"`
	Names       []string       `json:"names"`
	SelfRanks   map[string]int `json:"self_ranks,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
}

type ScoreRow struct {
	SessionID string `json:"-"`
	OwnerUID  string `json:"owner_uid"`
	RaterUID  string `json:"rater_uid"`
	Name      string `json:"name"`
	Value     int    `json:"value"`
}

type Completion struct {
	OwnerUID    string    `json:"owner_uid"`
	RaterUID    string    `json:"rater_uid"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type TieBreak struct {
	SessionID string     `json:"-"`
	Names     []string   `json:"names"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Winners   []string   `json:"winners,omitempty"`
}

// Aggregate result types

type AggregateRow struct {
	Name    string         `json:"name"`
	Total   int            `json:"total"`
	Count   int            `json:"count"`
	Average float64        `json:"average"`
	Owners  map[string]int `json:"owners"` // rater_uid -> contributed value, self-rank included
}

type Aggregate struct {
	Ranking  []AggregateRow `json:"ranking"`
	TopNames []string       `json:"top_names"`
}

// Read model

type InviteTokens struct {
	Owner string `json:"owner"`
	Voter string `json:"voter"`
}

// Vote ranks stay hidden; only who has voted is exposed.
type TieBreakView struct {
	Names     []string   `json:"names"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Voted     []string   `json:"voted"`
	Winners   []string   `json:"winners,omitempty"`
}

type SessionSnapshot struct {
	Session        Session       `json:"session"`
	Phase          string        `json:"phase"`
	Members        []Member      `json:"members"`
	InviteTokens   *InviteTokens `json:"invite_tokens,omitempty"`
	PendingInvites []Invite      `json:"pending_invites,omitempty"`
	Lists          []List        `json:"lists"`
	Scores         []ScoreRow    `json:"scores"`
	Completions    []Completion  `json:"completions"`
	Aggregate      *Aggregate    `json:"aggregate,omitempty"`
	TieBreak       *TieBreakView `json:"tiebreak,omitempty"`
	FinalWinners   []string      `json:"final_winners,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
