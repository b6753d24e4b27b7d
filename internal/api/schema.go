package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mossfield/villagesim/internal/engine"
	"github.com/mossfield/villagesim/internal/villagers"
	"github.com/mossfield/villagesim/internal/world"
)

// Command payloads are validated against a JSON Schema per kind before they
// reach the simulation, so malformed input is rejected at the edge with a
// useful message instead of a zero-valued command.
var commandSchemas = map[string]*jsonschema.Schema{}

func init() {
	for kind, src := range schemaSources {
		schema, err := jsonschema.CompileString(kind+".schema.json", src)
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", kind, err))
		}
		commandSchemas[kind] = schema
	}
}

var schemaSources = map[string]string{
	"spawn_villager": `{
	  "type": "object",
	  "required": ["kind"],
	  "properties": {
	    "kind": {"const": "spawn_villager"},
	    "name": {"type": "string", "maxLength": 80},
	    "position": {"$ref": "#/$defs/position"}
	  },
	  "additionalProperties": false,
	  "$defs": {
	    "position": {
	      "type": "object",
	      "required": ["x", "y"],
	      "properties": {"x": {"type": "number"}, "y": {"type": "number"}},
	      "additionalProperties": false
	    }
	  }
	}`,
	"remove_villager": `{
	  "type": "object",
	  "required": ["kind", "id"],
	  "properties": {
	    "kind": {"const": "remove_villager"},
	    "id": {"type": "integer", "minimum": 1}
	  },
	  "additionalProperties": false
	}`,
	"teleport": `{
	  "type": "object",
	  "required": ["kind", "id", "position"],
	  "properties": {
	    "kind": {"const": "teleport"},
	    "id": {"type": "integer", "minimum": 1},
	    "position": {
	      "type": "object",
	      "required": ["x", "y"],
	      "properties": {"x": {"type": "number"}, "y": {"type": "number"}},
	      "additionalProperties": false
	    }
	  },
	  "additionalProperties": false
	}`,
	"assign_housing": `{
	  "type": "object",
	  "required": ["kind", "id", "policy"],
	  "properties": {
	    "kind": {"const": "assign_housing"},
	    "id": {"type": "integer", "minimum": 1},
	    "policy": {"enum": ["new", "reload"]}
	  },
	  "additionalProperties": false
	}`,
	"force_state": `{
	  "type": "object",
	  "required": ["kind", "id", "state"],
	  "properties": {
	    "kind": {"const": "force_state"},
	    "id": {"type": "integer", "minimum": 1},
	    "state": {"enum": ["idle", "walking", "working", "shopping", "sleeping", "eating"]},
	    "hours": {"type": "number", "exclusiveMinimum": 0, "maximum": 24}
	  },
	  "additionalProperties": false
	}`,
	"set_speed": `{
	  "type": "object",
	  "required": ["kind", "scale"],
	  "properties": {
	    "kind": {"const": "set_speed"},
	    "scale": {"type": "number", "minimum": 0, "maximum": 100}
	  },
	  "additionalProperties": false
	}`,
}

type commandPayload struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name"`
	ID       uint64  `json:"id"`
	Policy   string  `json:"policy"`
	State    string  `json:"state"`
	Hours    float64 `json:"hours"`
	Scale    float64 `json:"scale"`
	Position *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
}

// decodeCommand parses and schema-validates a command request body.
func decodeCommand(r io.Reader) (engine.Command, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	kind, _ := doc.(map[string]any)["kind"].(string)
	schema, ok := commandSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown command kind %q", kind)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
	}

	var p commandPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	switch kind {
	case "spawn_villager":
		cmd := engine.SpawnVillager{Name: p.Name}
		if p.Position != nil {
			cmd.Position = &world.Vec2{X: p.Position.X, Y: p.Position.Y}
		}
		return cmd, nil
	case "remove_villager":
		return engine.RemoveVillager{ID: villagers.ID(p.ID)}, nil
	case "teleport":
		return engine.Teleport{
			ID:       villagers.ID(p.ID),
			Position: world.Vec2{X: p.Position.X, Y: p.Position.Y},
		}, nil
	case "assign_housing":
		return engine.AssignHousing{ID: villagers.ID(p.ID), Policy: p.Policy}, nil
	case "force_state":
		return engine.ForceState{ID: villagers.ID(p.ID), State: p.State, Hours: p.Hours}, nil
	case "set_speed":
		return engine.SetSpeed{Scale: p.Scale}, nil
	}
	return nil, fmt.Errorf("unknown command kind %q", kind)
}
