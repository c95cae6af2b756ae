package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/qrdesk/qrstudio/internal/config"
	"google.golang.org/api/option"
)

// NewAuthClient builds a Firebase ID-token verifier. It returns (nil, nil) when
// no Firebase project is configured, which puts the API in single-owner dev mode.
func NewAuthClient(ctx context.Context, cfg *config.Config) (*auth.Client, error) {
	if cfg.Auth.FirebaseProjectID == "" {
		return nil, nil
	}

	var opts []option.ClientOption
	if cfg.Auth.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Auth.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Auth.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return client, nil
}
