package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spendtrack/spendtrack/internal/auth"
	"github.com/spendtrack/spendtrack/internal/config"
	"github.com/spendtrack/spendtrack/internal/domain/user"
	"github.com/spendtrack/spendtrack/internal/http/middlewares"
	"github.com/spendtrack/spendtrack/internal/repo/postgres"
	"github.com/spendtrack/spendtrack/internal/security"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	GetByEmailOrGoogleID(ctx context.Context, email, googleID string) (user.User, error)
	Create(ctx context.Context, name, email string, passwordHash, googleID *string, isGoogleUser bool) (user.User, error)
	AttachGoogleIdentity(ctx context.Context, id int64, googleID, name string) error
}

type GoogleTokenVerifier interface {
	Verify(ctx context.Context, credential string) (auth.GoogleProfile, error)
}

type AuthHandler struct {
	users  UserStore
	jwt    *auth.Manager
	google GoogleTokenVerifier
}

func NewAuthHandler(users UserStore, jwtManager *auth.Manager, google GoogleTokenVerifier) *AuthHandler {
	return &AuthHandler{
		users:  users,
		jwt:    jwtManager,
		google: google,
	}
}

// consumer mailbox providers accepted on the /register path
var allowedEmailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"icloud.com":     {},
	"aol.com":        {},
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleAuthRequest struct {
	Credential string `json:"credential" binding:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// Register creates an account, restricted to the consumer-domain allow-list.
func (h *AuthHandler) Register(ctx *gin.Context) {
	h.createAccount(ctx, true)
}

// SignUp is the unrestricted register variant.
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	h.createAccount(ctx, false)
}

func (h *AuthHandler) createAccount(ctx *gin.Context, restrictDomains bool) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := normalizeEmail(req.Email)

	if restrictDomains && !domainAllowed(email) {
		RespondBadRequest(ctx, "invalid_email_domain", "Email domain is not supported.", nil)
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	u, err := h.users.Create(cctx, req.Name, email, &hash, nil, false)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			RespondBadRequest(ctx, "email_taken", "Email is already in use.", nil)
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	token, err := h.jwt.IssueSessionToken(u.ID, u.Email)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  u,
	})
}

// Login verifies password credentials and opens a session.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	h.establishSession(ctx, passwordCredentials{
		users:    h.users,
		email:    normalizeEmail(req.Email),
		password: req.Password,
	})
}

// GoogleAuth verifies a Google ID token and opens a session, creating the
// local account on first login.
func (h *AuthHandler) GoogleAuth(ctx *gin.Context) {
	var req GoogleAuthRequest

	if !BindJSON(ctx, &req) {
		return
	}

	h.establishSession(ctx, googleCredentials{
		users:      h.users,
		verifier:   h.google,
		credential: req.Credential,
	})
}

// establishSession is the single issuance path every login method feeds.
func (h *AuthHandler) establishSession(ctx *gin.Context, creds credentialVerifier) {
	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	u, err := creds.verify(cctx)

	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			// same answer whether the email is unknown or the password wrong
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		RespondInternal(ctx, "Could not sign in")
		return
	}

	token, err := h.jwt.IssueSessionToken(u.ID, u.Email)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    u,
	})
}

// VerifyToken confirms the bearer token still maps to a live account and
// returns the stored profile.
func (h *AuthHandler) VerifyToken(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "no_token", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "missing_user", "Account no longer exists.")
			return
		}

		RespondInternal(ctx, "Could not verify token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": u,
	})
}

// VerifyEmail reports what the signup form wants to know about an address
// without creating anything.
func (h *AuthHandler) VerifyEmail(ctx *gin.Context) {
	var req VerifyEmailRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := normalizeEmail(req.Email)

	// whitespace-only input survives the required tag but is still blank
	if email == "" {
		RespondBadRequest(ctx, "invalid_request", "Email must not be blank.", nil)
		return
	}

	validDomain := domainAllowed(email)

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	exists := false

	_, err := h.users.GetByEmail(cctx, email)

	switch {
	case err == nil:
		exists = true
	case errors.Is(err, user.ErrNotFound):
		// fine
	default:
		RespondInternal(ctx, "Could not verify email")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"verified":    validDomain,
		"validDomain": validDomain,
		"exists":      exists,
		"isGmail":     strings.HasSuffix(email, "@gmail.com"),
	})
}

// credential-verification strategies: password and Google both end in the
// same establishSession path above.

var errInvalidCredentials = errors.New("invalid credentials")

type credentialVerifier interface {
	verify(ctx context.Context) (user.User, error)
}

type passwordCredentials struct {
	users    UserStore
	email    string
	password string
}

func (c passwordCredentials) verify(ctx context.Context) (user.User, error) {
	u, err := c.users.GetByEmail(ctx, c.email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, errInvalidCredentials
		}

		return user.User{}, err
	}

	// google-only accounts have no password to check
	if u.PasswordHash == nil {
		return user.User{}, errInvalidCredentials
	}

	if err := security.CheckPassword(*u.PasswordHash, c.password); err != nil {
		return user.User{}, errInvalidCredentials
	}

	return u, nil
}

type googleCredentials struct {
	users      UserStore
	verifier   GoogleTokenVerifier
	credential string
}

func (c googleCredentials) verify(ctx context.Context) (user.User, error) {
	profile, err := c.verifier.Verify(ctx, c.credential)

	if err != nil {
		return user.User{}, errInvalidCredentials
	}

	email := normalizeEmail(profile.Email)

	u, err := c.users.GetByEmailOrGoogleID(ctx, email, profile.SubjectID)

	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}

		// first Google login creates the account; no local password
		return c.users.Create(ctx, profile.Name, email, nil, &profile.SubjectID, true)
	}

	// returning user: attach the subject id if missing and keep the display
	// name in sync with Google
	linked := u.GoogleID != nil && *u.GoogleID == profile.SubjectID
	nameCurrent := profile.Name == "" || u.Name == profile.Name

	if !linked || !nameCurrent {
		name := u.Name

		if profile.Name != "" {
			name = profile.Name
		}

		if err := c.users.AttachGoogleIdentity(ctx, u.ID, profile.SubjectID, name); err != nil {
			return user.User{}, err
		}

		u.Name = name
		u.GoogleID = &profile.SubjectID
		u.IsGoogleUser = true
	}

	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func domainAllowed(email string) bool {
	_, domain, found := strings.Cut(email, "@")

	if !found || domain == "" {
		return false
	}

	_, ok := allowedEmailDomains[domain]

	return ok
}
