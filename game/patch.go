package game

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// CellUpdate sets one cell. A patch is a single CellUpdate or an array of them.
type CellUpdate struct {
	Cell  []int `json:"cell"`
	Alive *bool `json:"alive"`
}

func decodePatch(patch json.RawMessage) ([]CellUpdate, error) {
	if !gjson.ValidBytes(patch) {
		return nil, errors.New("patch is not valid JSON")
	}

	var updates []CellUpdate
	switch r := gjson.ParseBytes(patch); {
	case r.IsArray():
		if err := json.Unmarshal(patch, &updates); err != nil {
			return nil, errors.Wrap(err, "decode patch array")
		}
	case r.IsObject():
		var u CellUpdate
		if err := json.Unmarshal(patch, &u); err != nil {
			return nil, errors.Wrap(err, "decode patch")
		}
		updates = append(updates, u)
	default:
		return nil, errors.Errorf("patch must be an object or array, got %s", r.Type)
	}

	for i, u := range updates {
		if len(u.Cell) != 2 {
			return nil, errors.Errorf("update %d: cell must be [x, y]", i)
		}
		if u.Alive == nil {
			return nil, errors.Errorf("update %d: missing alive", i)
		}
	}
	return updates, nil
}
