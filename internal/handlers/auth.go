package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"supplyhub/internal/database"
	"supplyhub/internal/geo"
	"supplyhub/internal/models"
)

// TokenConfig holds what the auth handlers need to mint tokens.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	CompanyName string `json:"companyName" binding:"max=100"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Role        string `json:"role" binding:"omitempty,oneof=buyer supplier admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type authResponse struct {
	ID           primitive.ObjectID `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	CompanyName  string             `json:"companyName,omitempty"`
	Role         string             `json:"role"`
	IsVerified   bool               `json:"isVerified"`
	Token        string             `json:"token"`
	RefreshToken string             `json:"refreshToken"`
	ExpiresIn    int64              `json:"expiresIn"`
}

func newAuthResponse(user models.User, tokens *issuedTokens) authResponse {
	return authResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		CompanyName:  user.CompanyName,
		Role:         user.Role,
		IsVerified:   user.IsVerified,
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}
}

// locate geocodes an address. Failures are logged and leave the account
// without coordinates.
func locate(ctx context.Context, geocoder geo.Geocoder, address string) *models.GeoPoint {
	address = strings.TrimSpace(address)
	if address == "" || geocoder == nil {
		return nil
	}
	lat, lon, err := geocoder.Geocode(ctx, address)
	if err != nil {
		log.Printf("[AUTH] [WARN] geocoding %q failed: %v", address, err)
		return nil
	}
	return models.NewGeoPoint(lat, lon)
}

func Register(db *mongo.Database, geocoder geo.Geocoder, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		role := req.Role
		if role == "" {
			role = models.RoleBuyer
		}
		if role == models.RoleAdmin {
			respondWithError(c, http.StatusForbidden, route, "Admin accounts cannot be self-registered")
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		name := strings.TrimSpace(req.Name)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		users := db.Collection(database.UsersCollection)
		count, err := users.CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			log.Println("[AUTH] [ERROR] register db error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		if count > 0 {
			log.Println("[AUTH] [ERROR] register email exists:", email)
			respondWithError(c, http.StatusConflict, route, "User already exists")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		now := time.Now().UTC()
		user := models.User{
			ID:           primitive.NewObjectID(),
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			CompanyName:  strings.TrimSpace(req.CompanyName),
			Phone:        strings.TrimSpace(req.Phone),
			Address:      strings.TrimSpace(req.Address),
			Location:     locate(ctx, geocoder, req.Address),
			Role:         role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if _, err := users.InsertOne(ctx, user); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "User already exists")
				return
			}
			log.Println("[AUTH] [ERROR] register insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens, c.Request.UserAgent())
		if err != nil {
			log.Println("[AUTH] [ERROR] register token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		log.Println("[AUTH] [INFO] user registered:", email, "role:", role)
		respondData(c, http.StatusCreated, newAuthResponse(user, issued))
	}
}

func Login(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection(database.UsersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			log.Println("[AUTH] [ERROR] login user lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials")
			respondWithError(c, http.StatusUnauthorized, route, "Invalid credentials")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens, c.Request.UserAgent())
		if err != nil {
			log.Println("[AUTH] [ERROR] login token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		log.Println("[AUTH] [INFO] user login succeeded:", user.Email)
		respondData(c, http.StatusOK, newAuthResponse(user, issued))
	}
}

// Refresh rotates a refresh token: the presented token is revoked and
// linked to its replacement.
func Refresh(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		refreshTokens := db.Collection(database.RefreshTokensCollection)
		var token models.RefreshToken
		if err := refreshTokens.FindOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}).Decode(&token); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "Invalid refresh token")
			return
		}

		if !token.Active(time.Now()) {
			_, _ = refreshTokens.UpdateByID(ctx, token.ID, bson.M{"$set": bson.M{"revoked": true}})
			respondWithError(c, http.StatusUnauthorized, route, "Refresh token expired")
			return
		}

		var user models.User
		if err := db.Collection(database.UsersCollection).FindOne(ctx, bson.M{"_id": token.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "User not found")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens, c.Request.UserAgent())
		if err != nil {
			log.Println("[AUTH] [ERROR] refresh token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		_, _ = refreshTokens.UpdateByID(ctx, token.ID, bson.M{
			"$set": bson.M{
				"revoked":         true,
				"replacedByToken": issued.RefreshTokenID,
			},
		})

		respondData(c, http.StatusOK, newAuthResponse(user, issued))
	}
}

func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.RefreshTokensCollection).UpdateOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "Invalid refresh token")
			return
		}

		respondMessage(c, http.StatusOK, "Logged out")
	}
}

// ForgotPassword confirms the account exists. No mail is sent.
func ForgotPassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/forgot-password"
		defer handlePanic(c, route)

		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		email := strings.ToLower(strings.TrimSpace(req.Email))
		count, err := db.Collection(database.UsersCollection).CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}

		log.Println("[AUTH] [INFO] password reset requested:", email)
		respondMessage(c, http.StatusOK, "Password reset email sent (mock implementation)")
	}
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "min", "max":
				details = append(details, fmt.Sprintf("%s must be %s %s", field, boundWord(fieldError.Tag()), fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": strings.Join(details, ", "),
			"errors":  details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
}

func boundWord(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func signAccessToken(user models.User, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"role":   user.Role,
		"email":  user.Email,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func issueTokens(ctx context.Context, db *mongo.Database, user models.User, cfg TokenConfig, userAgent string) (*issuedTokens, error) {
	now := time.Now()
	accessToken, err := signAccessToken(user, cfg.Secret, cfg.AccessTTL, now)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}

	plainRefresh, err := generateRefreshString()
	if err != nil {
		return nil, err
	}

	refresh := models.RefreshToken{
		ID:        primitive.NewObjectID(),
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(cfg.RefreshTTL),
		UserAgent: userAgent,
		CreatedAt: now,
	}
	if _, err := db.Collection(database.RefreshTokensCollection).InsertOne(ctx, refresh); err != nil {
		return nil, errors.Wrap(err, "store refresh token")
	}

	return &issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refresh.ID,
		ExpiresIn:      int64(cfg.AccessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate refresh token")
	}
	return hex.EncodeToString(buf), nil
}
