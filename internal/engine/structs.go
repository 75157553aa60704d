package engine

import "github.com/rocketscienceinc/infinite-tictactoe-backend/internal/entity"

const (
	CommandGetState = "get_state"
	CommandMakeMove = "make_move"
	CommandAIMove   = "ai_move"
)

// Request - is the single JSON document written to the engine's stdin.
type Request struct {
	Command       string        `json:"command"`
	WinLength     int           `json:"win_length"`
	Moves         []entity.Move `json:"moves"`
	CurrentPlayer string        `json:"current_player"`
	TimeMS        int           `json:"time_ms"`
	X             *int          `json:"x,omitempty"`
	Y             *int          `json:"y,omitempty"`
}

// Response - is the single JSON document read from the engine's stdout.
// The schema is strict: anything that does not decode into it is a
// protocol error, never a partially-applied result.
type Response struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Board    Board  `json:"board"`
	Move     *Move  `json:"move,omitempty"`
	Stats    *Stats `json:"stats,omitempty"`
	GameOver bool   `json:"game_over"`
	Winner   string `json:"winner,omitempty"`
}

// Board - is the engine's snapshot of the occupied cells plus the minimal
// rectangle containing them, used by clients for rendering.
type Board struct {
	Cells []Cell      `json:"cells"`
	BBox  BoundingBox `json:"bbox"`
}

type Cell struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Player string `json:"player"`
}

type BoundingBox struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Move - is the move the engine chose or echoed back.
type Move struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Player string `json:"player,omitempty"`
}

// Stats - describes how the engine reached its decision.
type Stats struct {
	TimeMS        int64  `json:"time_ms"`
	DecisionType  string `json:"decision_type"`
	DepthReached  int    `json:"depth_reached"`
	NodesSearched int64  `json:"nodes_searched,omitempty"`
	FinalScore    int64  `json:"final_score,omitempty"`
}
