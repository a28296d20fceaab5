package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blogorithm/blogorithm/rbac"
)

// ErrStoreUnavailable wraps transport-level Redis failures.
var ErrStoreUnavailable = errors.New("permission store unavailable")

// ErrUserNotFound is returned when no record exists for an email.
var ErrUserNotFound = errors.New("user not found")

// ErrUserCorrupt is returned when a stored record cannot be decoded.
var ErrUserCorrupt = errors.New("user record corrupt")

// ErrAdminAlreadyConfigured is returned by SetAdminEmail when the one-time
// primary admin registration has already happened.
var ErrAdminAlreadyConfigured = errors.New("primary admin already configured")

const (
	usersListKey  = "users:list"
	adminEmailKey = "admin:email"
)

// A user's role is stored redundantly in three addressable locations for
// different read patterns: inside the user object, under a dedicated role
// key, and inside the enumerable users list. Both write paths below run as
// one Lua script so the three views can only move together; Redis executes
// scripts atomically, which also serializes concurrent writers per call.

const setRoleScript = `
local user_key = KEYS[1]
local role_key = KEYS[2]
local list_key = KEYS[3]
local email = ARGV[1]
local role = ARGV[2]

local data = redis.call("GET", user_key)
if data then
  local user = cjson.decode(data)
  user["role"] = role
  redis.call("SET", user_key, cjson.encode(user))
end

redis.call("SET", role_key, role)

local list_data = redis.call("GET", list_key)
if list_data then
  local list = cjson.decode(list_data)
  local changed = false
  for i, u in ipairs(list) do
    if u["email"] == email then
      list[i]["role"] = role
      changed = true
    end
  end
  if changed then
    redis.call("SET", list_key, cjson.encode(list))
  end
end

return 1
`

var setRoleLua = redis.NewScript(setRoleScript)

const saveUserScript = `
local user_key = KEYS[1]
local role_key = KEYS[2]
local list_key = KEYS[3]
local email = ARGV[1]
local user_json = ARGV[2]

redis.call("SET", user_key, user_json)

local user = cjson.decode(user_json)
if user["role"] then
  redis.call("SET", role_key, user["role"])
end

local list_data = redis.call("GET", list_key)
local list = {}
if list_data then
  list = cjson.decode(list_data)
end

local found = false
for i, u in ipairs(list) do
  if u["email"] == email then
    list[i] = cjson.decode(user_json)
    found = true
  end
end
if not found then
  table.insert(list, cjson.decode(user_json))
end

redis.call("SET", list_key, cjson.encode(list))
return 1
`

var saveUserLua = redis.NewScript(saveUserScript)

// User is the persisted record for a known identity. Email is the natural
// key; ID is an opaque generated identifier. Records are never hard-deleted.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     string    `json:"image,omitempty"`
	Role      rbac.Role `json:"role"`
	CreatedAt string    `json:"createdAt"`
}

// InspectReport surfaces the three denormalized views of one email so
// drift is observable instead of silently trusted.
type InspectReport struct {
	UserObject    *User  `json:"userObject"`
	DedicatedRole string `json:"dedicatedRole"`
	UserInList    *User  `json:"userInList"`

	HasUserObject    bool `json:"hasUserObject"`
	HasDedicatedRole bool `json:"hasDedicatedRole"`
	IsInUsersList    bool `json:"isInUsersList"`
	RolesMatch       bool `json:"rolesMatch"`
}

// Store is the Redis-backed permission store: the sole authoritative owner
// of role state. Session tokens only cache what lives here.
type Store struct {
	redis redis.UniversalClient
}

// New creates a permission [Store] backed by the given Redis client.
func New(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

func userKey(email string) string {
	return "user:" + email
}

func roleKey(email string) string {
	return "user:" + email + ":role"
}

// GetUser fetches the user object for an email.
func (s *Store) GetUser(ctx context.Context, email string) (*User, error) {
	data, err := s.redis.Get(ctx, userKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserCorrupt, err)
	}
	return &user, nil
}

// SaveUser upserts the user object, its dedicated role key, and its
// users-list entry in one atomic step, so a record is born with all three
// role views in agreement.
func (s *Store) SaveUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	err = saveUserLua.Run(
		ctx,
		s.redis,
		[]string{userKey(user.Email), roleKey(user.Email), usersListKey},
		user.Email,
		string(data),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetRole returns the stored role for an email: the user object's role
// field when a record exists, otherwise the dedicated role key, otherwise
// RoleVisitor.
func (s *Store) GetRole(ctx context.Context, email string) (rbac.Role, error) {
	user, err := s.GetUser(ctx, email)
	switch {
	case err == nil:
		if user.Role.Valid() {
			return user.Role, nil
		}
		return rbac.RoleVisitor, nil
	case errors.Is(err, ErrUserNotFound):
		// fall through to the dedicated key
	case errors.Is(err, ErrUserCorrupt):
		// a corrupt object must not mask the dedicated key
	default:
		return rbac.RoleVisitor, err
	}

	raw, err := s.redis.Get(ctx, roleKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rbac.RoleVisitor, nil
		}
		return rbac.RoleVisitor, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	role, err := rbac.ParseRole(raw)
	if err != nil {
		return rbac.RoleVisitor, nil
	}
	return role, nil
}

// SetRole updates all three views of an email's role atomically. Calling it
// twice with the same arguments is observably identical to calling it once.
func (s *Store) SetRole(ctx context.Context, email string, role rbac.Role) error {
	err := setRoleLua.Run(
		ctx,
		s.redis,
		[]string{userKey(email), roleKey(email), usersListKey},
		email,
		role.String(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AdminEmail returns the primary admin email, or "" when not configured.
func (s *Store) AdminEmail(ctx context.Context) (string, error) {
	email, err := s.redis.Get(ctx, adminEmailKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return email, nil
}

// SetAdminEmail performs the one-time primary admin registration. A second
// call fails with ErrAdminAlreadyConfigured regardless of the email given.
func (s *Store) SetAdminEmail(ctx context.Context, email string) error {
	ok, err := s.redis.SetNX(ctx, adminEmailKey, email, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrAdminAlreadyConfigured
	}
	return nil
}

// ListUsers returns the enumerable users list.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	data, err := s.redis.Get(ctx, usersListKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []User{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserCorrupt, err)
	}
	return users, nil
}

// Inspect reads all three views of one email without mutating anything.
func (s *Store) Inspect(ctx context.Context, email string) (*InspectReport, error) {
	pipe := s.redis.Pipeline()
	userCmd := pipe.Get(ctx, userKey(email))
	roleCmd := pipe.Get(ctx, roleKey(email))
	listCmd := pipe.Get(ctx, usersListKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	report := &InspectReport{}

	if data, err := userCmd.Bytes(); err == nil {
		var user User
		if jsonErr := json.Unmarshal(data, &user); jsonErr == nil {
			report.UserObject = &user
			report.HasUserObject = true
		}
	}

	if role, err := roleCmd.Result(); err == nil {
		report.DedicatedRole = role
		report.HasDedicatedRole = true
	}

	if data, err := listCmd.Bytes(); err == nil {
		var users []User
		if jsonErr := json.Unmarshal(data, &users); jsonErr == nil {
			for i := range users {
				if users[i].Email == email {
					report.UserInList = &users[i]
					report.IsInUsersList = true
					break
				}
			}
		}
	}

	if report.HasUserObject && report.HasDedicatedRole {
		report.RolesMatch = report.UserObject.Role.String() == report.DedicatedRole
	}

	return report, nil
}

// Ping returns a point-in-time store availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
