package protocol

import "stratagem.ai/internal/game"

// JOIN (agent -> host)
type JoinMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
}

// WELCOME (host -> agent)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	PlayerID        game.PlayerID `json:"player_id"`
	MapSize         int           `json:"map_size"`
	FogOfWar        bool          `json:"fog_of_war,omitempty"`
	CatalogDigest   string        `json:"catalog_digest,omitempty"`
	MatchID         string        `json:"match_id,omitempty"`
}

// SNAPSHOT (host -> agent): the visible world for one tick. Player id,
// map size and fog ride in WELCOME; the transport stitches them back into
// the game.Snapshot it hands the planner.
type SnapshotMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            int           `json:"tick"`
	Players         []game.Player `json:"players"`
	Entities        []game.Entity `json:"entities"`
}

// ACT (agent -> host): one action per controlled entity for the tick the
// actions answer.
type ActMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            int            `json:"tick"`
	Actions         game.ActionSet `json:"actions"`
}

// ERROR (host -> agent)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
