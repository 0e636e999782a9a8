// Package api is the HTTP client of the Let's Donate backend REST contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/uuid"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// Client talks to the backend. It holds no entity state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout means 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL resolves a server-relative image path. Absolute URLs and local
// file URIs are returned unchanged.
func (c *Client) ImageURL(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return ""
	case strings.Contains(path, "://"):
		return path
	case strings.HasPrefix(path, "/"):
		return c.baseURL + path
	default:
		return c.baseURL + "/" + path
	}
}

// ListDonations fetches every donation (GET /api/donations).
func (c *Client) ListDonations(ctx context.Context) ([]*models.Donation, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/donations", nil, &raw); err != nil {
		return nil, err
	}
	return decodeDonations(raw)
}

// ListUserDonations fetches the donations of one user (GET /api/mydonations/:userId).
func (c *Client) ListUserDonations(ctx context.Context, userID string) ([]*models.Donation, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/mydonations/"+url.PathEscape(userID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeDonations(raw)
}

// CreateDonation uploads a new donation as a multipart form (POST /donate).
func (c *Client) CreateDonation(ctx context.Context, in models.DonationInput) (*models.Donation, error) {
	body, contentType, err := donationForm(in, false)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/donate", contentType, body, &raw); err != nil {
		return nil, err
	}
	return decodeDonation(raw)
}

// UpdateDonation replaces a donation (PUT /api/donations/:id/update). Images
// kept from the old version travel as the existingImages JSON field.
func (c *Client) UpdateDonation(ctx context.Context, id string, in models.DonationInput) (*models.Donation, error) {
	body, contentType, err := donationForm(in, true)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	path := "/api/donations/" + url.PathEscape(id) + "/update"
	if err := c.do(ctx, http.MethodPut, path, contentType, body, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return decodeDonation(raw)
}

// DeleteDonation deletes a donation (DELETE /api/donations/:id).
func (c *Client) DeleteDonation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/donations/"+url.PathEscape(id), nil, nil)
}

// GetCart fetches the authoritative cart of userID (GET /api/cart/:userId).
func (c *Client) GetCart(ctx context.Context, userID string) ([]CartEntry, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/cart/"+url.PathEscape(userID), nil, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return []CartEntry{}, nil
	}
	var wire []wireCartEntry
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, protocolError("decode cart", err)
	}
	entries := make([]CartEntry, 0, len(wire))
	for i := range wire {
		e, err := wire[i].toEntry()
		if err != nil {
			return nil, protocolError("decode cart", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// BookItem adds itemID to the cart of userID (POST /api/cart/book). The
// server answers 400 when the item is already booked and 404 when it is gone.
func (c *Client) BookItem(ctx context.Context, userID, itemID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/cart/book", models.CartPayload{UserID: userID, ItemID: itemID}, nil)
}

// RemoveFromCart deletes a cart row (DELETE /api/cart/:userId/:itemId).
func (c *Client) RemoveFromCart(ctx context.Context, userID, itemID string) error {
	path := "/api/cart/" + url.PathEscape(userID) + "/" + url.PathEscape(itemID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// GetUser fetches a user (GET /api/users/:userId).
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// UpdateUser sends a profile edit (PUT /api/users/:userId/update). The
// returned user is nil when the server does not echo it.
func (c *Client) UpdateUser(ctx context.Context, userID string, up models.UserUpdate) (*models.User, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPut, "/api/users/"+url.PathEscape(userID)+"/update", up, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return decodeUser(raw)
}

// Login checks credentials (POST /login). Bad credentials yield a protocol
// error with status 401.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	creds := map[string]string{"email": strings.TrimSpace(email), "password": password}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/login", creds, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// Register creates an account from form fields (POST /users).
func (c *Client) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	form := url.Values{}
	form.Set("firstname", reg.Firstname)
	form.Set("lastname", reg.Lastname)
	form.Set("email", strings.TrimSpace(reg.Email))
	form.Set("password", reg.Password)
	form.Set("contactnumber", reg.ContactNumber)
	form.Set("address", reg.Address)

	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, "/users", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), &raw)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// doJSON sends payload (if any) as JSON.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, out *json.RawMessage) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrValidation, "encode request", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

// do performs one request. Transport failures are NETWORK_ERROR, non-2xx
// answers and undecodable bodies PROTOCOL_ERROR. out receives the unwrapped
// payload.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out *json.RawMessage) error {
	op := method + " " + path

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
		if detail := errorDetail(data); detail != "" {
			msg += ": " + detail
		}
		e := apperrors.Status(resp.StatusCode, msg)
		e.Message = op + ": " + e.Message
		return e
	}

	payload, err := unwrap(data)
	if err != nil {
		return protocolError(op, err)
	}
	if out != nil {
		*out = payload
	}
	return nil
}

// errorDetail extracts {error} or {message} from an error body.
func errorDetail(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	if env.Error != "" {
		return env.Error
	}
	return env.Message
}

func protocolError(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrProtocol, op, err)
}

func decodeDonations(raw json.RawMessage) ([]*models.Donation, error) {
	if isNull(raw) {
		return []*models.Donation{}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, protocolError("decode donations", err)
	}
	// A malformed row is dropped so the rest of the list still reaches the cache.
	donations := make([]*models.Donation, 0, len(elems))
	for i, elem := range elems {
		d, err := decodeDonation(elem)
		if err != nil {
			logging.Warn("Skipping malformed donation", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			continue
		}
		donations = append(donations, d)
	}
	return donations, nil
}

func decodeDonation(raw json.RawMessage) (*models.Donation, error) {
	var wire wireDonation
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, protocolError("decode donation", err)
	}
	d, err := wire.toModel()
	if err != nil {
		return nil, protocolError("decode donation", err)
	}
	return d, nil
}

func decodeUser(raw json.RawMessage) (*models.User, error) {
	var wire wireUser
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, protocolError("decode user", err)
	}
	u, err := wire.toModel()
	if err != nil {
		return nil, protocolError("decode user", err)
	}
	return u, nil
}

// donationForm builds the multipart body of a create or update. New images
// are read from local files.
func donationForm(in models.DonationInput, update bool) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"street", in.Street},
		{"city", in.City},
		{"state", in.State},
		{"postalCode", in.PostalCode},
		{"country", in.Country},
		{"userId", in.UserID},
	}
	if in.Latitude != nil && in.Longitude != nil {
		fields = append(fields,
			[2]string{"latitude", strconv.FormatFloat(*in.Latitude, 'f', -1, 64)},
			[2]string{"longitude", strconv.FormatFloat(*in.Longitude, 'f', -1, 64)},
		)
	}
	if update {
		existing := in.ExistingImages
		if existing == nil {
			existing = []string{}
		}
		b, err := json.Marshal(existing)
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.ErrValidation, "encode existing images", err)
		}
		fields = append(fields, [2]string{"existingImages", string(b)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", apperrors.Wrap(apperrors.ErrValidation, "write form field", err)
		}
	}

	for _, path := range in.NewImages {
		if err := attachImage(w, path); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrValidation, "close form", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func attachImage(w *multipart.Writer, path string) error {
	f, err := os.Open(strings.TrimPrefix(path, "file://"))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "open image", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile("image", filepath.Base(f.Name()))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "attach image", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "attach image", err)
	}
	return nil
}
