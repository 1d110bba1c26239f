package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"lifesync-server/domain"
)

// Handler keeps every connection in sync with one shared simulation.
type Handler struct {
	registry domain.Registry
	sim      domain.Simulation
	newColor func() string
}

// NewHandler builds the simulation with newSim, handing it SendUpdates as
// the callback for published states.
func NewHandler(r domain.Registry, newSim func(onUpdate domain.UpdateFunc) (domain.Simulation, error)) (*Handler, error) {
	h := &Handler{registry: r, newColor: NewColor}
	sim, err := newSim(h.SendUpdates)
	if err != nil {
		return nil, errors.Wrap(err, "create simulation")
	}
	h.sim = sim
	return h, nil
}

// Connect registers conn for broadcasts. Connections that carry a token
// first get an INITIALIZE snapshot; the snapshot and the registration
// happen under the same read so no update can fall between them.
func (h *Handler) Connect(conn domain.Connection) {
	token := conn.Token()
	if token == "" {
		slog.Debug("connection without token, skipping initialize", "clientId", conn.ID())
		h.registry.Register(conn)
		return
	}

	user := domain.User{Token: token, Color: h.newColor()}
	h.sim.Read(func(state, settings any) {
		frame, err := encode(domain.TypeInitialize, domain.InitializeData{
			State:    state,
			Settings: settings,
			User:     user,
		})
		if err != nil {
			slog.Error("encode initialize", "clientId", conn.ID(), "error", err)
		} else if err := conn.Send(frame); err != nil {
			slog.Warn("send initialize", "clientId", conn.ID(), "error", err)
		}
		h.registry.Register(conn)
	})
	slog.Info("client initialized", "clientId", conn.ID(), "color", user.Color)
}

// Handle applies the patch carried in a client frame. The envelope type is
// not inspected; frames without data are ignored.
func (h *Handler) Handle(conn domain.Connection, data []byte) {
	if !gjson.ValidBytes(data) {
		slog.Warn("invalid message", "clientId", conn.ID())
		return
	}

	patch := gjson.GetBytes(data, "data")
	if !patch.Exists() || patch.Type == gjson.Null {
		slog.Debug("empty patch", "clientId", conn.ID())
		return
	}

	if err := h.sim.ApplyUpdates(json.RawMessage(patch.Raw)); err != nil {
		slog.Warn("patch rejected", "clientId", conn.ID(), "error", err)
	}
}

func (h *Handler) Disconnect(conn domain.Connection) {
	h.registry.Unregister(conn)
}

// SendUpdates broadcasts state as UPDATE_STATE to every open connection.
func (h *Handler) SendUpdates(state any) {
	frame, err := encode(domain.TypeUpdateState, state)
	if err != nil {
		slog.Error("encode update", "error", err)
		return
	}
	h.registry.Broadcast(frame)
}

func encode(typ domain.MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", typ)
	}
	frame, err := json.Marshal(domain.Message{Type: typ, Data: data})
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s message", typ)
	}
	return frame, nil
}
