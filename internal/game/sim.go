package game

import (
	"encoding/json"
	"fmt"

	"github.com/rampartgame/rampart/internal/protocol"
)

// Simulator is the game-rules collaborator a room dispatches to. Apply is
// always invoked with the room lock held, so implementations are serialized
// per room and need no locking of their own. A non-nil state is broadcast to
// the room; a non-nil error is surfaced to the acting player as
// ACTION_FAILED.
type Simulator interface {
	Apply(side Side, msg *protocol.Message) (state interface{}, err error)
}

// SimConfig carries the tunables for a match.
type SimConfig struct {
	GridWidth    int
	GridHeight   int
	StartingGold int
}

// Tower is one placed tower as it appears in state snapshots.
type Tower struct {
	Side  Side   `json:"side"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Kind  string `json:"towerType"`
	Level int    `json:"level"`
	// Gold invested so far, which determines the sell refund.
	Invested int `json:"-"`
}

// StateSnapshot is the full authoritative state broadcast after every
// accepted action. Snapshots are complete rather than incremental so a
// reconnecting player is caught up by whichever one arrives next.
type StateSnapshot struct {
	Wave   int           `json:"wave"`
	Gold   map[Side]int  `json:"gold"`
	Ready  map[Side]bool `json:"ready"`
	Towers []Tower       `json:"towers"`
}

const (
	maxTowerLevel = 3
	// Sell refund, as invested gold divided by refundDivisor.
	refundDivisor = 2
	// Minimum grid distance between two towers on the same side.
	minTowerSpacing = 2

	baseWaveIncome    = 25
	perWaveIncomeStep = 5
)

var towerCosts = map[string]int{
	"arrow":  50,
	"frost":  75,
	"cannon": 100,
}

type cell struct{ x, y int }

// towerDefense is the shipped Simulator: a symmetric build phase where each
// side places towers on its own half of the grid and the wave advances once
// both sides have declared ready.
type towerDefense struct {
	cfg    SimConfig
	wave   int
	gold   map[Side]int
	ready  map[Side]bool
	towers map[cell]*Tower
}

func NewTowerDefense(cfg SimConfig) Simulator {
	return &towerDefense{
		cfg:    cfg,
		wave:   1,
		gold:   map[Side]int{SideAttacker: cfg.StartingGold, SideDefender: cfg.StartingGold},
		ready:  map[Side]bool{},
		towers: make(map[cell]*Tower),
	}
}

func (t *towerDefense) Apply(side Side, msg *protocol.Message) (interface{}, error) {
	switch msg.Type {
	case protocol.TypePlaceTower:
		return t.placeTower(side, msg.Raw)
	case protocol.TypeSellTower:
		return t.sellTower(side, msg.Raw)
	case protocol.TypeUpgradeTower:
		return t.upgradeTower(side, msg.Raw)
	case protocol.TypeWaveReady:
		return t.waveReady(side)
	default:
		// Unknown simulation messages are a routing bug upstream, not a
		// player-visible failure.
		return nil, nil
	}
}

type towerAction struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"towerType"`
}

func (t *towerDefense) placeTower(side Side, raw json.RawMessage) (interface{}, error) {
	var action towerAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("unreadable tower placement")
	}

	cost, ok := towerCosts[action.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown tower type %q", action.Kind)
	}
	if !t.inBounds(action.X, action.Y) {
		return nil, fmt.Errorf("cell (%d,%d) is out of bounds", action.X, action.Y)
	}
	if !t.inTerritory(side, action.X) {
		return nil, fmt.Errorf("cell (%d,%d) is outside your territory", action.X, action.Y)
	}
	if _, occupied := t.towers[cell{action.X, action.Y}]; occupied {
		return nil, fmt.Errorf("cell (%d,%d) is occupied", action.X, action.Y)
	}
	for c, tower := range t.towers {
		if tower.Side == side && gridDistance(c.x, c.y, action.X, action.Y) < minTowerSpacing {
			return nil, fmt.Errorf("too close to your tower at (%d,%d)", c.x, c.y)
		}
	}
	if t.gold[side] < cost {
		return nil, fmt.Errorf("not enough gold for a %s tower", action.Kind)
	}

	t.gold[side] -= cost
	t.towers[cell{action.X, action.Y}] = &Tower{
		Side:     side,
		X:        action.X,
		Y:        action.Y,
		Kind:     action.Kind,
		Level:    1,
		Invested: cost,
	}
	return t.snapshot(), nil
}

func (t *towerDefense) sellTower(side Side, raw json.RawMessage) (interface{}, error) {
	var action towerAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("unreadable tower sale")
	}

	tower, ok := t.towers[cell{action.X, action.Y}]
	if !ok || tower.Side != side {
		return nil, fmt.Errorf("no tower of yours at (%d,%d)", action.X, action.Y)
	}

	t.gold[side] += tower.Invested / refundDivisor
	delete(t.towers, cell{action.X, action.Y})
	return t.snapshot(), nil
}

func (t *towerDefense) upgradeTower(side Side, raw json.RawMessage) (interface{}, error) {
	var action towerAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("unreadable tower upgrade")
	}

	tower, ok := t.towers[cell{action.X, action.Y}]
	if !ok || tower.Side != side {
		return nil, fmt.Errorf("no tower of yours at (%d,%d)", action.X, action.Y)
	}
	if tower.Level >= maxTowerLevel {
		return nil, fmt.Errorf("tower at (%d,%d) is already level %d", action.X, action.Y, maxTowerLevel)
	}

	cost := towerCosts[tower.Kind] * tower.Level
	if t.gold[side] < cost {
		return nil, fmt.Errorf("not enough gold to upgrade")
	}

	t.gold[side] -= cost
	tower.Invested += cost
	tower.Level++
	return t.snapshot(), nil
}

func (t *towerDefense) waveReady(side Side) (interface{}, error) {
	t.ready[side] = true

	if t.ready[SideAttacker] && t.ready[SideDefender] {
		t.wave++
		t.ready = map[Side]bool{}

		income := baseWaveIncome + t.wave*perWaveIncomeStep
		t.gold[SideAttacker] += income
		t.gold[SideDefender] += income
	}
	return t.snapshot(), nil
}

func (t *towerDefense) snapshot() *StateSnapshot {
	snap := &StateSnapshot{
		Wave:   t.wave,
		Gold:   map[Side]int{SideAttacker: t.gold[SideAttacker], SideDefender: t.gold[SideDefender]},
		Ready:  map[Side]bool{SideAttacker: t.ready[SideAttacker], SideDefender: t.ready[SideDefender]},
		Towers: make([]Tower, 0, len(t.towers)),
	}
	for _, tower := range t.towers {
		snap.Towers = append(snap.Towers, *tower)
	}
	return snap
}

func (t *towerDefense) inBounds(x, y int) bool {
	return x >= 0 && x < t.cfg.GridWidth && y >= 0 && y < t.cfg.GridHeight
}

// inTerritory restricts each side to its own half of the grid: attacker on
// the left, defender on the right.
func (t *towerDefense) inTerritory(side Side, x int) bool {
	mid := t.cfg.GridWidth / 2
	if side == SideAttacker {
		return x < mid
	}
	return x >= mid
}

// gridDistance is the manhattan distance between two cells.
func gridDistance(x1, y1, x2, y2 int) int {
	return abs(x1-x2) + abs(y1-y2)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
