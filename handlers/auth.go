package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixelgrove/holospace/holospace-backend/models"
	"github.com/pixelgrove/holospace/holospace-backend/responses"
	"github.com/pixelgrove/holospace/holospace-backend/utils"
)

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var user models.User
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	if len(user.Username) < 3 || len(user.Username) > 50 {
		utils.HandleError(w, responses.BadRequestError{Msg: "Username must be between 3 and 50 characters."})
		return
	}

	if len(user.Password) < 3 || len(user.Password) > 50 {
		utils.HandleError(w, responses.BadRequestError{Msg: "Password must be between 3 and 50 characters."})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to hash password."})
		return
	}
	user.Password = string(hashedPassword)

	_, err = s.DB.Exec("INSERT INTO users (username, password) VALUES ($1, $2)", user.Username, user.Password)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to create user."})
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "User created successfully."}))
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var loginInfo models.User
	err := json.NewDecoder(r.Body).Decode(&loginInfo)
	if err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	var user models.User
	err = s.DB.QueryRow("SELECT id, username, password FROM users WHERE username = $1", loginInfo.Username).Scan(&user.ID, &user.Username, &user.Password)
	if err != nil {
		if err == sql.ErrNoRows {
			utils.HandleError(w, responses.UnauthorizedError{Msg: "You are not authorized to access this resource."})
			return
		}
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "An error occurred while processing your request."})
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginInfo.Password))
	if err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid username or password."})
		return
	}

	tokenString, err := signAccessToken(user, s.jwtSecret)
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate token."})
		return
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate refresh token."})
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour * 180) // Expires in 180 days

	_, err = s.DB.Exec("INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)",
		user.ID, refreshToken, expiresAt)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to store refresh token."})
		return
	}

	refreshTokenCookie := &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}

	http.SetCookie(w, refreshTokenCookie)
	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"access_token": tokenString}))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	refreshTokenCookie, err := r.Cookie("refresh_token")

	if err == nil {
		_, dbErr := s.DB.Exec("DELETE FROM refresh_tokens WHERE token = $1", refreshTokenCookie.Value)
		if dbErr != nil {
			log.Println(dbErr)
			utils.HandleError(w, responses.InternalServerError{Msg: "Failed to delete refresh token."})
			return
		}
	}

	// Expire the cookie to force the client to delete it
	newCookie := &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/",
		Expires:  time.Now().AddDate(0, 0, -1),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	}
	http.SetCookie(w, newCookie)

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "Logged out successfully."}))
}

func (s *Server) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshTokenCookie, err := r.Cookie("refresh_token")
	if err != nil {
		utils.HandleError(w, responses.UnauthorizedError{Msg: "No refresh token found."})
		return
	}

	var userID uint64
	var expiresAt time.Time
	err = s.DB.QueryRow("SELECT user_id, expires_at FROM refresh_tokens WHERE token = $1", refreshTokenCookie.Value).Scan(&userID, &expiresAt)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.UnauthorizedError{Msg: "Invalid refresh token."})
		return
	}

	if time.Now().After(expiresAt) {
		utils.HandleError(w, responses.UnauthorizedError{Msg: "Refresh token has expired."})
		return
	}

	user := models.User{ID: userID}
	err = s.DB.QueryRow("SELECT username FROM users WHERE id = $1", userID).Scan(&user.Username)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "An error occurred while processing your request."})
		return
	}

	tokenString, err := signAccessToken(user, s.jwtSecret)
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate token."})
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"access_token": tokenString}))
}

func signAccessToken(user models.User, secret string) (string, error) {
	claims := models.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		},
		ID:       strconv.FormatUint(user.ID, 10),
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func generateRefreshToken() (string, error) {
	tokenBytes := make([]byte, 64) // 64 bytes
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(tokenBytes), nil
}

func ValidateToken(tokenStr, secret string) (*models.CustomClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty JWT secret")
	}

	claims := &models.CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
