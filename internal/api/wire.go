package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// stringList decodes a JSON string, array of strings or null. The backend
// stores a single path for older donations and an array for newer ones.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = nil
		return nil
	case b[0] == '"':
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		if one = strings.TrimSpace(one); one != "" {
			*s = stringList{one}
		} else {
			*s = nil
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	out := many[:0]
	for _, v := range many {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*s = out
	return nil
}

// ref decodes a document reference that is either an id string or a
// populated object carrying "_id".
type ref struct {
	ID  string
	Raw json.RawMessage // the populated object, if any
}

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = ref{}
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		return json.Unmarshal(b, &r.ID)
	case b[0] == '{':
		var obj struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.ID = obj.ID
		r.Raw = append(json.RawMessage(nil), b...)
		return nil
	}
	return fmt.Errorf("unexpected reference %s", b)
}

// Populated reports whether the reference carried the whole document.
func (r ref) Populated() bool {
	return len(r.Raw) > 0
}

// number decodes a JSON number or numeric string. Empty strings and null
// decode to nil.
type number struct {
	V *float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	n.V = nil
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("coordinate %q: %w", s, err)
	}
	n.V = &f
	return nil
}

// wireDonation is a donation as served by the backend.
type wireDonation struct {
	ID             string     `json:"_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Street         string     `json:"street"`
	City           string     `json:"city"`
	State          string     `json:"state"`
	PostalCode     string     `json:"postalCode"`
	Country        string     `json:"country"`
	PickupLocation string     `json:"pickupLocation"`
	Latitude       number     `json:"latitude"`
	Longitude      number     `json:"longitude"`
	Image          stringList `json:"image"`
	UserID         ref        `json:"userId"`
	BookedBy       ref        `json:"bookedBy"`
	Available      *bool      `json:"available"`
	PublishedDate  *time.Time `json:"publishedDate"`
}

// toModel converts w, normalizing the availability invariant. bookedBy wins
// over a contradicting available flag.
func (w *wireDonation) toModel() (*models.Donation, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("donation without _id")
	}
	d := &models.Donation{
		ServerID:    w.ID,
		Title:       w.Title,
		Description: w.Description,
		Category:    w.Category,
		Address: models.Address{
			Street:     w.Street,
			City:       w.City,
			State:      w.State,
			PostalCode: w.PostalCode,
			Country:    w.Country,
		},
		Latitude:  w.Latitude.V,
		Longitude: w.Longitude.V,
		Images:    []string(w.Image),
		UserID:    w.UserID.ID,
		BookedBy:  w.BookedBy.ID,
	}
	if d.Street == "" && w.PickupLocation != "" {
		d.Street = w.PickupLocation
	}
	if w.PublishedDate != nil && !w.PublishedDate.IsZero() {
		d.CreatedAt = w.PublishedDate.UnixMilli()
	}
	d.Normalize()
	return d, nil
}

// wireUser is a user as served by the backend. The password hash is never
// decoded.
type wireUser struct {
	ID            string `json:"_id"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactnumber"`
	Address       string `json:"address"`
}

func (w *wireUser) toModel() (*models.User, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("user without _id")
	}
	return &models.User{
		ServerID:      w.ID,
		Firstname:     w.Firstname,
		Lastname:      w.Lastname,
		Email:         strings.TrimSpace(w.Email),
		ContactNumber: w.ContactNumber,
		Address:       w.Address,
	}, nil
}

// CartEntry is one row of the server cart. ItemID is empty when the server
// holds a dangling reference; Item is set when the donation was populated.
type CartEntry struct {
	ItemID string
	Item   *models.Donation
}

type wireCartEntry struct {
	ItemID ref `json:"itemId"`
}

func (w *wireCartEntry) toEntry() (CartEntry, error) {
	e := CartEntry{ItemID: w.ItemID.ID}
	if !w.ItemID.Populated() {
		return e, nil
	}
	var wd wireDonation
	if err := json.Unmarshal(w.ItemID.Raw, &wd); err != nil {
		return e, fmt.Errorf("cart item: %w", err)
	}
	d, err := wd.toModel()
	if err != nil {
		return e, err
	}
	e.Item = d
	return e, nil
}

// envelope is the {success, data} wrapper of most endpoints. Login and
// registration answer {success, user} instead.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	User    json.RawMessage `json:"user"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// unwrap returns the payload of body: data or user of an envelope, or body
// itself when it is a bare document.
func unwrap(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] != '{' {
		return body, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return nil, fmt.Errorf("server reported failure: %s", msg)
	}
	switch {
	case len(env.Data) > 0:
		return env.Data, nil
	case len(env.User) > 0:
		return env.User, nil
	case env.Success != nil:
		return nil, nil
	}
	return body, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
