package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var ErrGoogleTokenInvalid = errors.New("google credential could not be verified")

// GoogleProfile is the subset of the ID-token payload the app cares about.
type GoogleProfile struct {
	SubjectID string
	Email     string
	Name      string
}

// GoogleVerifier validates Google-issued ID tokens against Google's public
// keys and the configured OAuth client id. The external verification is the
// sole trust boundary: no local password check happens on this path.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (GoogleProfile, error) {
	payload, err := idtoken.Validate(ctx, credential, v.clientID)

	if err != nil {
		return GoogleProfile{}, ErrGoogleTokenInvalid
	}

	profile := GoogleProfile{
		SubjectID: payload.Subject,
		Email:     claimString(payload.Claims, "email"),
		Name:      claimString(payload.Claims, "name"),
	}

	if profile.SubjectID == "" || profile.Email == "" {
		return GoogleProfile{}, ErrGoogleTokenInvalid
	}

	return profile, nil
}

func claimString(claims map[string]interface{}, key string) string {
	v, ok := claims[key]

	if !ok {
		return ""
	}

	s, _ := v.(string)

	return s
}
