package engine

import (
	"fmt"
	"log/slog"

	"github.com/mossfield/villagesim/internal/buildings"
	"github.com/mossfield/villagesim/internal/villagers"
	"github.com/mossfield/villagesim/internal/world"
)

// CommandResult is the structured outcome of one command. A failed command
// never affects other agents or halts the tick.
type CommandResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Command mutates the world between ticks. Implementations run under the
// simulation write lock.
type Command interface {
	Kind() string
	apply(s *Simulation) (string, error)
}

type queuedCommand struct {
	cmd Command
	res chan CommandResult
}

// Enqueue schedules a command for the start of the next tick and returns a
// channel that receives its result.
func (s *Simulation) Enqueue(cmd Command) <-chan CommandResult {
	res := make(chan CommandResult, 1)
	s.cmdMu.Lock()
	s.commands = append(s.commands, queuedCommand{cmd: cmd, res: res})
	s.cmdMu.Unlock()
	return res
}

// Apply runs a command immediately under the write lock, for callers that
// cannot wait for the scheduler (tools, tests). Never call from inside a
// tick.
func (s *Simulation) Apply(cmd Command) CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(cmd)
}

// drainCommands applies every queued command at the top of the tick.
// Caller holds the write lock.
func (s *Simulation) drainCommands() {
	s.cmdMu.Lock()
	queue := s.commands
	s.commands = nil
	s.cmdMu.Unlock()

	for _, q := range queue {
		q.res <- s.run(q.cmd)
	}
}

func (s *Simulation) run(cmd Command) CommandResult {
	detail, err := cmd.apply(s)
	if err != nil {
		slog.Warn("command failed", "kind", cmd.Kind(), "error", err)
		return CommandResult{Error: err.Error()}
	}
	slog.Info("command applied", "kind", cmd.Kind(), "detail", detail)
	return CommandResult{OK: true, Detail: detail}
}

// SpawnVillager creates a villager at the given position, or a random
// navigable one. An empty name draws from the name tables.
type SpawnVillager struct {
	Name     string
	Position *world.Vec2
}

func (SpawnVillager) Kind() string { return "spawn_villager" }

func (c SpawnVillager) apply(s *Simulation) (string, error) {
	pos := s.Nav.RandomNavigablePoint(s.RNG, 20)
	if c.Position != nil {
		if !s.Landscape.Bounds.Contains(*c.Position) {
			return "", fmt.Errorf("position %v outside the village", *c.Position)
		}
		pos = *c.Position
	}
	v := villagers.NewVillager(s.RNG, pos, c.Name)
	v.State = villagers.StateIdle
	s.Villagers.Add(v)
	s.houseVillager(v)
	s.employVillager(v)
	return fmt.Sprintf("%s (id %d) spawned", v.Name, v.ID), nil
}

// RemoveVillager deletes a villager and releases its memberships.
type RemoveVillager struct {
	ID villagers.ID
}

func (RemoveVillager) Kind() string { return "remove_villager" }

func (c RemoveVillager) apply(s *Simulation) (string, error) {
	v := s.Villagers.Get(c.ID)
	if v == nil {
		return "", fmt.Errorf("villager %d not found", c.ID)
	}
	s.Villagers.Remove(c.ID)
	return fmt.Sprintf("%s removed", v.Name), nil
}

// Teleport moves a villager instantly, clearing any active path.
type Teleport struct {
	ID       villagers.ID
	Position world.Vec2
}

func (Teleport) Kind() string { return "teleport" }

func (c Teleport) apply(s *Simulation) (string, error) {
	if !s.Landscape.Bounds.Contains(c.Position) {
		return "", fmt.Errorf("position %v outside the village", c.Position)
	}
	v := s.Villagers.Get(c.ID)
	if v == nil {
		return "", fmt.Errorf("villager %d not found", c.ID)
	}
	s.Villagers.Teleport(c.ID, c.Position)
	return fmt.Sprintf("%s teleported to %v", v.Name, c.Position), nil
}

// Housing assignment policies.
const (
	HousingNew    = "new"    // Move to a different house with a free bed
	HousingReload = "reload" // Re-run assignment, keeping the current house if free
)

// AssignHousing re-houses a villager under the given policy.
type AssignHousing struct {
	ID     villagers.ID
	Policy string
}

func (AssignHousing) Kind() string { return "assign_housing" }

func (c AssignHousing) apply(s *Simulation) (string, error) {
	v := s.Villagers.Get(c.ID)
	if v == nil {
		return "", fmt.Errorf("villager %d not found", c.ID)
	}

	switch c.Policy {
	case HousingNew:
		target := s.findOtherHouse(v.HomeID)
		if target == nil {
			return "", fmt.Errorf("no other house has a free bed")
		}
		if !s.Registry.AddOccupant(target.ID, buildings.VillagerID(v.ID)) {
			return "", fmt.Errorf("house %q refused occupancy", target.Name)
		}
		v.HomeID = target.ID
		return fmt.Sprintf("%s moved to %s", v.Name, target.Name), nil

	case HousingReload:
		if home := s.Registry.Get(v.HomeID); home != nil {
			if s.Registry.AddOccupant(home.ID, buildings.VillagerID(v.ID)) {
				return fmt.Sprintf("%s kept %s", v.Name, home.Name), nil
			}
		}
		v.HomeID = 0
		s.houseVillager(v)
		if v.HomeID == 0 {
			return "", fmt.Errorf("no housing available")
		}
		return fmt.Sprintf("%s rehoused to %s", v.Name, s.Registry.Get(v.HomeID).Name), nil

	default:
		return "", fmt.Errorf("unknown housing policy %q", c.Policy)
	}
}

func (s *Simulation) findOtherHouse(current buildings.ID) *buildings.Building {
	for _, b := range s.Registry.All() {
		if b.Kind != buildings.KindHouse || b.ID == current {
			continue
		}
		if len(b.Occupants) < b.MaxOccupants {
			return b
		}
	}
	return nil
}

// ForceState overrides a villager's state machine for a few game-hours, the
// console wake/sleep back door.
type ForceState struct {
	ID    villagers.ID
	State string
	Hours float64
}

func (ForceState) Kind() string { return "force_state" }

func (c ForceState) apply(s *Simulation) (string, error) {
	state, ok := villagers.StateFromString(c.State)
	if !ok {
		return "", fmt.Errorf("unknown state %q", c.State)
	}
	v := s.Villagers.Get(c.ID)
	if v == nil {
		return "", fmt.Errorf("villager %d not found", c.ID)
	}
	s.Villagers.ForceState(c.ID, state, c.Hours)
	return fmt.Sprintf("%s forced to %s", v.Name, state), nil
}

// SetSpeed changes the game-time multiplier; zero pauses the world.
type SetSpeed struct {
	Scale float64
}

func (SetSpeed) Kind() string { return "set_speed" }

func (c SetSpeed) apply(s *Simulation) (string, error) {
	if c.Scale < 0 {
		return "", fmt.Errorf("speed %.2f must be non-negative", c.Scale)
	}
	s.timeScale = c.Scale
	return fmt.Sprintf("time scale set to %.2f", c.Scale), nil
}
