package resource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stayadmin.org/internal/audit"
	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/store"
)

// Services bundles the per-resource facades the HTTP layer serves.
type Services struct {
	Companies  *Service
	Properties *Service
	Users      *Service
	Numbers    *Service
	Knowledge  *Service
}

// NewServices wires every facade over one dispatcher.
func NewServices(dispatcher *store.Dispatcher, recorder *audit.Recorder) *Services {
	return &Services{
		Companies:  NewCompanies(dispatcher, recorder),
		Properties: NewProperties(dispatcher, recorder),
		Users:      NewUsers(dispatcher, recorder),
		Numbers:    NewNumbers(dispatcher, recorder),
		Knowledge:  NewKnowledge(dispatcher, recorder),
	}
}

// ByName resolves a facade from a client-supplied resource name.
func (s *Services) ByName(name string) (*Service, error) {
	table, err := store.Resolve(name)
	if err != nil {
		return nil, err
	}
	switch table {
	case store.TableCompanies:
		return s.Companies, nil
	case store.TableProperties:
		return s.Properties, nil
	case store.TableUsers:
		return s.Users, nil
	case store.TableNumbers:
		return s.Numbers, nil
	case store.TableKnowledge:
		return s.Knowledge, nil
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownResource, name)
	}
}

var propertyStatuses = map[string]struct{}{
	"draft": {}, "active": {}, "archived": {},
}

var propertyTypes = map[string]struct{}{
	"house": {}, "apartment": {}, "room": {}, "office": {},
}

// NewProperties builds the properties facade: per-tenant name uniqueness plus
// a closed status/type vocabulary.
func NewProperties(dispatcher *store.Dispatcher, recorder *audit.Recorder) *Service {
	validate := func(ctx context.Context, s *Service, identity auth.Identity, id string, data map[string]any) error {
		if name, ok := data["name"]; ok || id == "" {
			trimmed := strings.TrimSpace(asString(name))
			if trimmed == "" {
				return fmt.Errorf("%w: property name is required", ErrValidation)
			}
			data["name"] = trimmed
			if err := requireUnique(ctx, s, identity, id, "name", trimmed); err != nil {
				return err
			}
		}
		if status, ok := data["status"]; ok {
			normalized := strings.ToLower(strings.TrimSpace(asString(status)))
			if _, known := propertyStatuses[normalized]; !known {
				return fmt.Errorf("%w: unsupported status %q", ErrValidation, status)
			}
			data["status"] = normalized
		} else if id == "" {
			data["status"] = "draft"
		}
		if typ, ok := data["type"]; ok {
			normalized := strings.ToLower(strings.TrimSpace(asString(typ)))
			if _, known := propertyTypes[normalized]; !known {
				return fmt.Errorf("%w: unsupported property type %q", ErrValidation, typ)
			}
			data["type"] = normalized
		}
		stampCreate(id, data)
		return nil
	}
	return &Service{
		name:           string(store.TableProperties),
		dispatcher:     dispatcher,
		recorder:       recorder,
		validateCreate: validate,
		validateUpdate: validate,
	}
}

// NewNumbers builds the phone numbers facade: numbers are normalized and must
// reference a property of the same tenant.
func NewNumbers(dispatcher *store.Dispatcher, recorder *audit.Recorder) *Service {
	validate := func(ctx context.Context, s *Service, identity auth.Identity, id string, data map[string]any) error {
		if number, ok := data["number"]; ok || id == "" {
			normalized, err := normalizePhone(asString(number))
			if err != nil {
				return err
			}
			data["number"] = normalized
			if err := requireUnique(ctx, s, identity, id, "number", normalized); err != nil {
				return err
			}
		}
		if propertyID, ok := data["property_id"]; ok || id == "" {
			raw := strings.TrimSpace(asString(propertyID))
			if raw == "" {
				return fmt.Errorf("%w: property_id is required", ErrValidation)
			}
			prop, err := s.Dispatcher().Get(ctx, string(store.TableProperties), raw)
			if err != nil {
				return fmt.Errorf("%w: unknown property %q", ErrValidation, raw)
			}
			if owner, _ := prop[TenantField].(string); owner != identity.CompanyID {
				// Cross-tenant references read as unknown, same as a bad id.
				return fmt.Errorf("%w: unknown property %q", ErrValidation, raw)
			}
			data["property_id"] = asString(prop[store.PublicIDField])
		}
		stampCreate(id, data)
		return nil
	}
	return &Service{
		name:           string(store.TableNumbers),
		dispatcher:     dispatcher,
		recorder:       recorder,
		validateCreate: validate,
		validateUpdate: validate,
	}
}

// NewUsers builds the users facade. Passwords come in under "password" and
// are stored as bcrypt hashes; the hash never leaves through a read. An
// identity cannot deactivate or delete itself.
func NewUsers(dispatcher *store.Dispatcher, recorder *audit.Recorder) *Service {
	validate := func(ctx context.Context, s *Service, identity auth.Identity, id string, data map[string]any) error {
		if email, ok := data["email"]; ok || id == "" {
			normalized := strings.TrimSpace(strings.ToLower(asString(email)))
			if normalized == "" || !strings.Contains(normalized, "@") {
				return fmt.Errorf("%w: valid email is required", ErrValidation)
			}
			data["email"] = normalized
			if err := requireUnique(ctx, s, identity, id, "email", normalized); err != nil {
				return err
			}
		}
		if role, ok := data["role"]; ok || id == "" {
			parsed, err := auth.ParseRole(asString(role))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			data["role"] = string(parsed)
		}
		if password, ok := data["password"]; ok {
			hash, err := auth.HashPassword(asString(password))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			delete(data, "password")
			data[auth.PasswordHashField] = hash
		} else if id == "" {
			return fmt.Errorf("%w: password is required", ErrValidation)
		}
		if active, ok := data[ActiveField].(bool); ok && !active && id != "" && id == identity.ID {
			return fmt.Errorf("%w: cannot deactivate own account", ErrValidation)
		}
		stampCreate(id, data)
		return nil
	}
	return &Service{
		name:           string(store.TableUsers),
		dispatcher:     dispatcher,
		recorder:       recorder,
		validateCreate: validate,
		validateUpdate: validate,
		validateDelete: func(ctx context.Context, s *Service, identity auth.Identity, id string, _ map[string]any) error {
			if id == identity.ID {
				return fmt.Errorf("%w: cannot delete own account", ErrValidation)
			}
			return nil
		},
		sanitize: func(rec store.Record) store.Record {
			clean := make(store.Record, len(rec))
			for k, v := range rec {
				if k == auth.PasswordHashField {
					continue
				}
				clean[k] = v
			}
			return clean
		},
	}
}

// NewKnowledge builds the knowledge base facade: titles are mandatory and
// slugs are derived, never caller-chosen.
func NewKnowledge(dispatcher *store.Dispatcher, recorder *audit.Recorder) *Service {
	validate := func(ctx context.Context, s *Service, identity auth.Identity, id string, data map[string]any) error {
		if title, ok := data["title"]; ok || id == "" {
			trimmed := strings.TrimSpace(asString(title))
			if trimmed == "" {
				return fmt.Errorf("%w: title is required", ErrValidation)
			}
			data["title"] = trimmed
			data["slug"] = slugify(trimmed)
		} else {
			delete(data, "slug")
		}
		stampCreate(id, data)
		return nil
	}
	return &Service{
		name:           string(store.TableKnowledge),
		dispatcher:     dispatcher,
		recorder:       recorder,
		validateCreate: validate,
		validateUpdate: validate,
	}
}

// NewCompanies builds the companies facade. A company record is the tenant
// itself, so ownership is the record id.
func NewCompanies(dispatcher *store.Dispatcher, recorder *audit.Recorder) *Service {
	validate := func(ctx context.Context, s *Service, identity auth.Identity, id string, data map[string]any) error {
		if name, ok := data["name"]; ok || id == "" {
			trimmed := strings.TrimSpace(asString(name))
			if trimmed == "" {
				return fmt.Errorf("%w: company name is required", ErrValidation)
			}
			data["name"] = trimmed
		}
		stampCreate(id, data)
		return nil
	}
	return &Service{
		name:           string(store.TableCompanies),
		dispatcher:     dispatcher,
		recorder:       recorder,
		scopeByID:      true,
		validateCreate: validate,
		validateUpdate: validate,
	}
}

// Helpers -----------------------------------------------------------------

// requireUnique enforces per-tenant uniqueness of field=value, tolerating the
// record under update matching itself.
func requireUnique(ctx context.Context, s *Service, identity auth.Identity, id, field string, value string) error {
	filter := store.Filter{field: value}
	if !s.scopeByID {
		filter[TenantField] = identity.CompanyID
	}
	res, err := s.Dispatcher().List(ctx, s.Name(), store.Pagination{Page: 1, PerPage: 1}, store.Sort{}, filter)
	if err != nil {
		return err
	}
	if res.Total == 0 {
		return nil
	}
	if id != "" && len(res.Data) == 1 && asString(res.Data[0][store.PublicIDField]) == id {
		return nil
	}
	return fmt.Errorf("%w: %s %q already exists", ErrValidation, field, value)
}

func stampCreate(id string, data map[string]any) {
	if id == "" {
		data["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}
}

func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var digits strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: invalid phone number %q", ErrValidation, raw)
		}
	}
	if n := digits.Len(); n < 7 || n > 15 {
		return "", fmt.Errorf("%w: invalid phone number %q", ErrValidation, raw)
	}
	return "+" + digits.String(), nil
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
