package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/wattwise/internal/config"
	"github.com/mamadbah2/wattwise/internal/domain/models"
	repo "github.com/mamadbah2/wattwise/internal/repository/mongodb"
)

type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUserRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email || user.Username == username {
			return user, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUserRepo) Insert(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	f.users[user.ID.Hex()] = user
	return nil
}

func (f *fakeUserRepo) Replace(ctx context.Context, user *models.User) error {
	f.users[user.ID.Hex()] = user
	return nil
}

func (f *fakeUserRepo) FindAll(ctx context.Context) ([]models.User, error) {
	return nil, nil
}

func newTestService() (*Service, *fakeUserRepo) {
	store := newFakeUserRepo()
	svc := NewService(store, config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}, nil)
	return svc, store
}

func TestRegister_IssuesVerifiableToken(t *testing.T) {
	svc, _ := newTestService()

	user, token, err := svc.Register(context.Background(), "alice", "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Password == "s3cret" {
		t.Error("password must be stored hashed")
	}
	if len(user.Light.DayWiseConsumption) != 1 {
		t.Error("appliance records must be seeded at registration")
	}

	userID, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if userID != user.ID.Hex() {
		t.Errorf("expected token subject %s, got %s", user.ID.Hex(), userID)
	}
}

func TestRegister_DuplicateRejected(t *testing.T) {
	svc, _ := newTestService()

	if _, _, err := svc.Register(context.Background(), "alice", "alice@example.com", "pw"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "alice2", "alice@example.com", "pw"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate email: expected ErrUserExists, got %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "alice", "other@example.com", "pw"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate username: expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()

	registered, _, err := svc.Register(context.Background(), "bob", "bob@example.com", "hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	user, token, err := svc.Login(context.Background(), "bob@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Error("login returned a different user")
	}
	if token == "" {
		t.Error("expected a session token")
	}

	if _, _, err := svc.Login(context.Background(), "bob@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	svc, _ := newTestService()
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.IssueToken(primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
