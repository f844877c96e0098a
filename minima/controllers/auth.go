package controllers

import (
	"context"
	"errors"
	"time"

	"minima/minima/config"
	"minima/minima/sources/psql/dao"
	"minima/minima/sources/psql/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type AuthController struct {
	userDAO *dao.UserDAO
	cfg     config.Config
}

func NewAuthController(userDAO *dao.UserDAO, cfg config.Config) *AuthController {
	return &AuthController{
		userDAO: userDAO,
		cfg:     cfg,
	}
}

func (c *AuthController) token(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.cfg.JWTSecret))
}

func (c *AuthController) SignUp(ctx context.Context, email, password string, name *string) (string, *models.User, error) {
	existing, err := c.userDAO.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if existing != nil {
		return "", nil, ErrEmailTaken
	}
	user, err := c.userDAO.CreateUser(ctx, email, password, name)
	if err != nil {
		return "", nil, err
	}
	tok, err := c.token(user)
	if err != nil {
		return "", nil, err
	}
	return tok, user, nil
}

func (c *AuthController) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := c.userDAO.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := c.token(user)
	if err != nil {
		return "", nil, err
	}
	return tok, user, nil
}

// Session resolves the bearer identity back to its user row.
func (c *AuthController) Session(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return c.userDAO.GetUserByID(ctx, userID)
}
