package memstore

import (
	"context"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
)

// UserRepository stores accounts keyed by id with a unique email index.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, errs.NotFoundf("user not found")
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.emails[email]
	if !ok {
		return types.User{}, errs.NotFoundf("user not found")
	}
	return r.s.users[id], nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.emails[user.Email]; taken {
		return types.User{}, errs.Conflictf("email is already registered")
	}
	if _, taken := r.s.users[user.ID]; taken {
		return types.User{}, errs.Conflictf("user already exists")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Enrollments = nil
	r.s.users[user.ID] = user
	r.s.emails[user.Email] = user.ID
	return user, nil
}

func (r *UserRepository) SetRoleByEmail(_ context.Context, email string, role types.Role) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.emails[email]
	if !ok {
		return types.User{}, errs.NotFoundf("user not found")
	}
	user := r.s.users[id]
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	r.s.users[id] = user
	return user, nil
}

// Delete removes the user together with its enrollments.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return errs.NotFoundf("user not found")
	}
	delete(r.s.users, id)
	delete(r.s.emails, user.Email)
	for _, courseID := range r.s.byUser[id] {
		delete(r.s.enrollments, enrollmentKey{userID: id, courseID: courseID})
	}
	delete(r.s.byUser, id)
	return nil
}
