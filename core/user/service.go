package user

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/coachingcentre/platform/core"
)

var (
	// errors
	ErrNotFound   = errors.New("user not found")
	ErrUserExists = errors.New("a user with this username or email already exists")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(id string) (User, error)
		GetByUsernameOrEmail(uname string) (User, error)
		Update(usr User, uu UpdateUser) (User, error)
		SetLastLogin(usr User) (User, error)
		ResetPassword(uname, pwd string) error
		AddUser(name, uname, email, pwd string, roles []string) (User, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers); err != nil {
		if pkgerrors.Cause(err) == ErrUserExists {
			return core.NewValidationError(err)
		}
		return err
	}
	return nil
}

func (svc *Service) Create(nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(context.Background(), usr)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(context.Background(), filter, ordering)
}

func (svc *Service) GetByID(id string) (User, error) {
	return svc.repo.GetUser(context.Background(), GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUser(context.Background(), GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(context.Background(), usr)
}

func (svc *Service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(context.Background(), usr)
}

func (svc *Service) ResetPassword(uname, pwd string) error {
	usr, err := svc.GetByUsernameOrEmail(uname)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return pkgerrors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(context.Background(), usr)
	return err
}

// AddUser updates or creates an active user, bypassing the password policy.
func (svc *Service) AddUser(name, uname, email, pwd string, roles []string) (User, error) {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	now := NowFunc().UTC()
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: lookup})
	if err != nil {
		if pkgerrors.Cause(err) != ErrNotFound {
			return User{}, err
		}
		usr = User{Username: uname, Email: email, CreatedAt: now}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = usr.Username
	}
	if roles != nil {
		usr.Roles = roles
	}
	usr.SetActive(true)
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}

	if usr.ID == "" {
		return svc.repo.CreateUser(ctx, usr)
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// Lookup returns the active user with the given ID.
func (svc *Service) Lookup(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if !usr.Active() {
		return User{}, ErrNotFound
	}
	return usr, nil
}

// IsInstructor reports whether `id` belongs to an active instructor.
func (svc *Service) IsInstructor(ctx context.Context, id string) (bool, error) {
	usr, err := svc.Lookup(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return usr.IsInstructor(), nil
}
