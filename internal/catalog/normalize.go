package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedClient is returned when a payload cannot be read as a client.
var ErrMalformedClient = errors.New("catalog: malformed client payload")

// rawClient accepts every client shape the backend has produced over time.
type rawClient struct {
	ID               json.Number     `json:"id"`
	Name             string          `json:"name"`
	Phone            json.RawMessage `json:"phone"`
	Email            *string         `json:"email"`
	Address          *string         `json:"address"`
	Municipality     json.RawMessage `json:"municipality"`
	MunicipalityID   *json.Number    `json:"municipality_id"`
	MunicipalityName *string         `json:"municipality_name"`
}

// NormalizeClient decodes a client payload into the canonical Client. The
// municipality may arrive as a nested {id,name} object, a plain string, or as
// flat municipality_id/municipality_name fields.
func NormalizeClient(data []byte) (Client, error) {
	var raw rawClient
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Client{}, fmt.Errorf("%w: %v", ErrMalformedClient, err)
	}
	id, err := parseID(raw.ID)
	if err != nil {
		return Client{}, fmt.Errorf("%w: id: %v", ErrMalformedClient, err)
	}
	client := Client{
		ID:      id,
		Name:    strings.TrimSpace(raw.Name),
		Phone:   phoneString(raw.Phone),
		Email:   blankToNil(raw.Email),
		Address: blankToNil(raw.Address),
	}
	muni, err := normalizeMunicipality(raw)
	if err != nil {
		return Client{}, err
	}
	client.Municipality = muni
	return client, nil
}

// NormalizeClients decodes a JSON array of clients, normalising each element.
func NormalizeClients(data []byte) ([]Client, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClient, err)
	}
	clients := make([]Client, 0, len(items))
	for _, item := range items {
		c, err := NormalizeClient(item)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}

func normalizeMunicipality(raw rawClient) (*Municipality, error) {
	trimmed := bytes.TrimSpace(raw.Municipality)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		// fall through to the flat fields
	case trimmed[0] == '{':
		var nested struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&nested); err != nil {
			return nil, fmt.Errorf("%w: municipality: %v", ErrMalformedClient, err)
		}
		id, err := parseID(nested.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: municipality id: %v", ErrMalformedClient, err)
		}
		return &Municipality{ID: id, Name: strings.TrimSpace(nested.Name)}, nil
	case trimmed[0] == '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return nil, fmt.Errorf("%w: municipality: %v", ErrMalformedClient, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			break
		}
		m := &Municipality{Name: name}
		if raw.MunicipalityID != nil {
			m.ID, _ = parseID(*raw.MunicipalityID)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unexpected municipality %s", ErrMalformedClient, string(trimmed))
	}

	if raw.MunicipalityID == nil && (raw.MunicipalityName == nil || strings.TrimSpace(*raw.MunicipalityName) == "") {
		return nil, nil
	}
	m := &Municipality{}
	if raw.MunicipalityID != nil {
		id, err := parseID(*raw.MunicipalityID)
		if err != nil {
			return nil, fmt.Errorf("%w: municipality_id: %v", ErrMalformedClient, err)
		}
		m.ID = id
	}
	if raw.MunicipalityName != nil {
		m.Name = strings.TrimSpace(*raw.MunicipalityName)
	}
	return m, nil
}

func parseID(n json.Number) (int64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// phoneString accepts phone numbers sent either as strings or numbers.
func phoneString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
