package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"supplyhub/internal/database"
	"supplyhub/internal/geo"
	"supplyhub/internal/models"
)

type profileRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=50"`
	CompanyName *string `json:"companyName" binding:"omitempty,max=100"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		if err := db.Collection(database.UsersCollection).FindOne(ctx, bson.M{"_id": actor.ID}).Decode(&user); err != nil {
			log.Println("[AUTH] [ERROR] get me failed:", err)
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}

		respondData(c, http.StatusOK, user)
	}
}

// UpdateProfile changes the caller's contact fields. A new address is
// geocoded again.
func UpdateProfile(db *mongo.Database, geocoder geo.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /auth/profile"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		set := bson.M{"updatedAt": time.Now().UTC()}
		unset := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "Please add a name")
				return
			}
			set["name"] = name
		}
		if req.CompanyName != nil {
			set["companyName"] = strings.TrimSpace(*req.CompanyName)
		}
		if req.Phone != nil {
			set["phone"] = strings.TrimSpace(*req.Phone)
		}
		if req.Address != nil {
			address := strings.TrimSpace(*req.Address)
			set["address"] = address
			if point := locate(ctx, geocoder, address); point != nil {
				set["location"] = point
			} else {
				unset["location"] = ""
			}
		}

		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		var user models.User
		err := db.Collection(database.UsersCollection).FindOneAndUpdate(ctx,
			bson.M{"_id": actor.ID},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			log.Println("[AUTH] [ERROR] profile update failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		log.Println("[AUTH] [INFO] profile updated:", user.Email)
		respondData(c, http.StatusOK, user)
	}
}

func ChangePassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /auth/password"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req passwordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		users := db.Collection(database.UsersCollection)
		var user models.User
		if err := users.FindOne(ctx, bson.M{"_id": actor.ID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "Current password is incorrect")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		if _, err := users.UpdateByID(ctx, actor.ID, bson.M{"$set": bson.M{
			"passwordHash": string(hash),
			"updatedAt":    time.Now().UTC(),
		}}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		// Existing sessions end with the old password.
		if _, err := db.Collection(database.RefreshTokensCollection).UpdateMany(ctx,
			bson.M{"userId": actor.ID, "revoked": false},
			bson.M{"$set": bson.M{"revoked": true}},
		); err != nil {
			log.Println("[AUTH] [WARN] revoking refresh tokens failed:", err)
		}

		log.Println("[AUTH] [INFO] password changed:", user.Email)
		respondMessage(c, http.StatusOK, "Password updated successfully")
	}
}
