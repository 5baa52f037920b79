package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
	"beatspace/models"
)

type UserRepository struct {
	coll database.Collection
}

type UserFilter struct {
	IDs    []string
	Role   models.Role
	Status models.UserStatus
}

func (f UserFilter) query() bson.M {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		filter["id"] = stringsIn(f.IDs)
	}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return filter
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := getOne(ctx, r.coll, id, apperr.ErrUserNotFound, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}, &user)
	if errors.Is(err, database.ErrNoDocuments) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	users := []models.User{}
	if err := r.coll.Find(ctx, filter.query(), database.FindOptions{SortField: "created_at", SortDesc: true}, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context, filter UserFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, filter.query())
}

func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	err := r.coll.InsertOne(ctx, user)
	if database.IsDuplicateKey(err) {
		return apperr.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, id string, update database.Update) (*models.User, error) {
	var user models.User
	err := transition(ctx, r.coll, id, nil, update, &user)
	if err != nil {
		return nil, mapNotFound(err, apperr.ErrUserNotFound)
	}
	return &user, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, database.Update{Set: bson.M{"last_login": at}})
	return err
}
