package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-mebel/internal/common"
	"github.com/noah-isme/backend-mebel/internal/events"
)

// Handler wires cart sessions to HTTP.
type Handler struct {
	Deps      Deps
	Validator *common.Validator
	Currency  string
}

type lineView struct {
	Index int `json:"index"`
	LineItem
	LineTotal int64 `json:"lineTotal"`
}

// View is the JSON shape of a cart returned to clients.
type View struct {
	SessionID string          `json:"sessionId"`
	Lines     []lineView      `json:"lines"`
	Subtotal  int64           `json:"subtotal"`
	ItemCount int             `json:"itemCount"`
	Currency  string          `json:"currency,omitempty"`
	Notices   []events.Notice `json:"notices,omitempty"`
}

// NewView renders c for the session id.
func NewView(sessionID string, c Cart, currency string) View {
	lines := c.Lines()
	out := make([]lineView, 0, len(lines))
	for i, l := range lines {
		out = append(out, lineView{Index: i, LineItem: l, LineTotal: l.Total()})
	}
	return View{
		SessionID: sessionID,
		Lines:     out,
		Subtotal:  c.Subtotal(),
		ItemCount: c.ItemCount(),
		Currency:  currency,
	}
}

type addItemRequest struct {
	ItemID      int64  `json:"itemId" validate:"required,gt=0"`
	UnitPrice   int64  `json:"unitPrice" validate:"gte=0,lte=1000000000000000"`
	Quantity    int    `json:"quantity" validate:"gte=1,lte=100000"`
	Mode        string `json:"mode" validate:"omitempty,oneof=purchase rental"`
	Color       string `json:"color" validate:"max=64"`
	Name        string `json:"name" validate:"max=200"`
	Image       string `json:"image" validate:"omitempty,max=500"`
	PlanMonths  int    `json:"planMonths" validate:"gte=0,lte=600"`
	PaymentType string `json:"paymentType" validate:"omitempty,oneof=full installment"`
}

func (p addItemRequest) lineItem() LineItem {
	mode := p.Mode
	if mode == "" {
		mode = ModePurchase
	}
	return LineItem{
		ItemID:    p.ItemID,
		UnitPrice: p.UnitPrice,
		Quantity:  p.Quantity,
		Variant:   VariantKey{Mode: mode, Color: p.Color},
		Display: Display{
			Name:        p.Name,
			Image:       p.Image,
			PlanMonths:  p.PlanMonths,
			PaymentType: p.PaymentType,
		},
	}
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=100000"`
}

// Get returns the session cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, rec := h.open(r)
	h.render(w, s, rec)
}

// AddItem adds or merges a line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if err := h.Validator.Decode(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	s, rec := h.open(r)
	if _, err := s.Add(r.Context(), payload.lineItem()); err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, s, rec)
}

// UpdateItem sets the quantity of the line at {index}; zero or less removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var payload updateItemRequest
	if err := h.Validator.Decode(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	s, rec := h.open(r)
	if _, err := s.SetQuantity(r.Context(), index, *payload.Quantity); err != nil && !errors.Is(err, ErrIndexOutOfRange) {
		h.writeError(w, err)
		return
	}
	h.render(w, s, rec)
}

// RemoveItem deletes the line at {index}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	s, rec := h.open(r)
	if _, err := s.Remove(r.Context(), index); err != nil && !errors.Is(err, ErrIndexOutOfRange) {
		h.writeError(w, err)
		return
	}
	h.render(w, s, rec)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	s, rec := h.open(r)
	s.Clear(r.Context())
	h.render(w, s, rec)
}

func (h *Handler) open(r *http.Request) (*Session, *events.Recorder) {
	return OpenRequest(r, h.Deps)
}

// OpenRequest loads the request's session with a recorder attached to its
// bus so the response can echo the notices this request produced.
func OpenRequest(r *http.Request, deps Deps) (*Session, *events.Recorder) {
	rec := &events.Recorder{}
	deps.Bus = deps.Bus.With(rec)
	id, _ := common.SessionID(r.Context())
	return LoadSession(r.Context(), id, deps), rec
}

func (h *Handler) render(w http.ResponseWriter, s *Session, rec *events.Recorder) {
	view := NewView(s.ID(), s.Cart(), h.Currency)
	view.Notices = rec.Notices()
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidLine):
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid line index", nil)
		return 0, false
	}
	return index, true
}
