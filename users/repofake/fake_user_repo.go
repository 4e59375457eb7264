package fakeuserrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	loginIds map[string]string // login name to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		loginIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	if user == nil || user.LoginName == "" {
		return errors.ErrInvalidUser
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if ownerID, ok := ur.loginIds[user.LoginName]; ok && ownerID != user.ID {
		return errors.ErrLoginNameTaken
	}
	if existing, ok := ur.users[user.ID]; ok && existing.LoginName != user.LoginName {
		delete(ur.loginIds, existing.LoginName)
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}

	stored := copyUser(user)
	ur.users[user.ID] = stored
	ur.loginIds[user.LoginName] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errors.ErrUserNotFound
	}
	delete(ur.loginIds, user.LoginName)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (ur *FakeUserRepo) FindByLoginNameExact(_ context.Context, loginName string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.loginIds[loginName]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return copyUser(ur.users[id]), nil
}

func (ur *FakeUserRepo) FindByLoginNameContains(_ context.Context, fragment string, req users.PageRequest) (users.Slice[*users.User], error) {
	req = req.Normalize()
	matches := ur.filter(func(u *users.User) bool { return containsFold(u.LoginName, fragment) })
	return users.NewSlice(window(matches, req.Offset(), req.Size+1), req), nil
}

func (ur *FakeUserRepo) FindByDisplayNameContains(_ context.Context, fragment string, req users.PageRequest) (users.Page[*users.User], error) {
	req = req.Normalize()
	matches := ur.filter(func(u *users.User) bool { return containsFold(u.DisplayName, fragment) })
	return users.NewPage(window(matches, req.Offset(), req.Size), req, len(matches)), nil
}

func (ur *FakeUserRepo) List(_ context.Context, req users.PageRequest) (users.Page[*users.User], error) {
	req = req.Normalize()
	all := ur.filter(func(*users.User) bool { return true })
	return users.NewPage(window(all, req.Offset(), req.Size), req, len(all)), nil
}

func (ur *FakeUserRepo) SetLastLogin(_ context.Context, id string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errors.ErrUserNotFound
	}
	user.LastLogin = at
	return nil
}

// filter returns copies of the matching users ordered by login name
func (ur *FakeUserRepo) filter(match func(*users.User) bool) []*users.User {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0)
	for _, u := range ur.users {
		if match(u) {
			userList = append(userList, copyUser(u))
		}
	}
	sort.Slice(userList, func(i, j int) bool {
		return userList[i].LoginName < userList[j].LoginName
	})
	return userList
}

func window(list []*users.User, offset, limit int) []*users.User {
	if offset < 0 || offset >= len(list) {
		return nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}

func containsFold(value, fragment string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(fragment))
}

func copyUser(u *users.User) *users.User {
	c := *u
	c.Roles = append([]users.RoleType(nil), u.Roles...)
	return &c
}
