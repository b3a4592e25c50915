package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/repository"
	"github.com/dancehub/marketplace/utils"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 72 * time.Hour

type RegisterInput struct {
	FullName       string
	Email          string
	Password       string
	Role           string
	ReferredByCode string
}

type AuthService struct {
	users     repository.UserRepository
	jwtSecret []byte
	log       *logrus.Logger
	now       Clock
}

func NewAuthService(users repository.UserRepository, jwtSecret string, log *logrus.Logger) *AuthService {
	return &AuthService{users: users, jwtSecret: []byte(jwtSecret), log: log, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.RoleStudent
	}
	if role != models.RoleStudent && role != models.RoleCoach {
		return nil, apperrors.Validation("Role must be student or coach")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := utils.GenerateUniqueReferralCode(ctx, s.users.ReferralCodeExists)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Password:     string(hashed),
		Role:         role,
		ReferralCode: &code,
		IsActive:     true,
	}
	if ref := strings.ToUpper(strings.TrimSpace(in.ReferredByCode)); ref != "" {
		if _, err := s.users.FindByReferralCode(ctx, ref); err == nil {
			user.ReferredByCode = &ref
		} else {
			s.log.WithField("referralCode", ref).Info("unknown referral code at registration")
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.New(apperrors.KindConflict, "email_taken", "Email already exists")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"userId": user.ID, "role": role}).Info("user registered")
	return user, nil
}

// Login checks the credentials and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	invalid := apperrors.New(apperrors.KindUnauthorized, "invalid_credentials", "Invalid email or password")
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, invalid
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, invalid
	}
	if !user.IsActive {
		return "", nil, apperrors.Forbidden("Account is disabled")
	}

	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    user.Role,
		"exp":     s.now().Add(tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	id, err := parseOptionalUUID(userID)
	if err != nil || id == nil {
		return nil, apperrors.Validation("Invalid user id")
	}
	user, err := s.users.FindByID(ctx, *id)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return user, nil
}
