package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"npkchat/internal/config"
)

const (
	signingService = "execute-api"
	refreshLead    = 5 * time.Minute
)

type idpClient interface {
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, opts ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

type identityClient interface {
	GetId(ctx context.Context, in *cognitoidentity.GetIdInput, opts ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, opts ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// Session is the bot user's federated identity: it authenticates against the
// user pool, exchanges the token for identity-pool credentials, keeps them
// fresh in the background, and signs API requests with them.
type Session struct {
	log *slog.Logger
	cfg config.CognitoConfig

	region   string
	provider string

	idp  idpClient
	idpl identityClient

	signer *v4.Signer

	mu           sync.RWMutex
	identityID   string
	creds        aws.Credentials
	refreshToken string
	tokenExpiry  time.Time

	refreshTimer *time.Timer
}

func NewSession(log *slog.Logger, region string, cfg config.CognitoConfig) *Session {
	if log == nil {
		log = slog.Default()
	}
	anon := aws.AnonymousCredentials{}
	return &Session{
		log:      log,
		cfg:      cfg,
		region:   region,
		provider: fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", region, cfg.UserPoolID),
		idp: cognitoidentityprovider.New(cognitoidentityprovider.Options{
			Region:      region,
			Credentials: anon,
		}),
		idpl: cognitoidentity.New(cognitoidentity.Options{
			Region:      region,
			Credentials: anon,
		}),
		signer: v4.NewSigner(),
	}
}

// Init authenticates the bot user and retrieves federated credentials. The
// first refresh is scheduled five minutes before the access token expires.
func (s *Session) Init(ctx context.Context) error {
	out, err := s.idp.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: ciptypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(s.cfg.ClientID),
		AuthParameters: map[string]string{
			"USERNAME": s.cfg.Username,
			"PASSWORD": s.cfg.Password,
		},
	})
	if err != nil {
		return fmt.Errorf("authenticate bot user: %w", err)
	}
	result := out.AuthenticationResult
	if result == nil || result.IdToken == nil {
		return fmt.Errorf("authenticate bot user: challenge response required")
	}

	s.mu.Lock()
	if result.RefreshToken != nil {
		s.refreshToken = *result.RefreshToken
	}
	s.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	s.mu.Unlock()

	if err := s.retrieveCredentials(ctx, *result.IdToken); err != nil {
		return err
	}
	s.scheduleRefresh()
	return nil
}

func (s *Session) retrieveCredentials(ctx context.Context, idToken string) error {
	logins := map[string]string{s.provider: idToken}

	idOut, err := s.idpl.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(s.cfg.IdentityPoolID),
		Logins:         logins,
	})
	if err != nil {
		return fmt.Errorf("resolve identity id: %w", err)
	}
	if idOut.IdentityId == nil {
		return fmt.Errorf("resolve identity id: empty response")
	}

	credsOut, err := s.idpl.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: idOut.IdentityId,
		Logins:     logins,
	})
	if err != nil {
		return fmt.Errorf("retrieve federated credentials: %w", err)
	}
	c := credsOut.Credentials
	if c == nil || c.AccessKeyId == nil || c.SecretKey == nil {
		return fmt.Errorf("retrieve federated credentials: empty response")
	}

	s.mu.Lock()
	s.identityID = *idOut.IdentityId
	s.creds = aws.Credentials{
		AccessKeyID:     *c.AccessKeyId,
		SecretAccessKey: *c.SecretKey,
		CanExpire:       c.Expiration != nil,
	}
	if c.SessionToken != nil {
		s.creds.SessionToken = *c.SessionToken
	}
	if c.Expiration != nil {
		s.creds.Expires = *c.Expiration
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) scheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := time.Until(s.tokenExpiry) - refreshLead
	if wait < time.Minute {
		wait = time.Minute
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
	}
	s.refreshTimer = time.AfterFunc(wait, s.refresh)
}

func (s *Session) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.mu.RLock()
	token := s.refreshToken
	s.mu.RUnlock()

	out, err := s.idp.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: ciptypes.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(s.cfg.ClientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": token,
		},
	})
	if err != nil || out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		s.log.Error("failed to refresh session", "err", err)
		// Retry on the next cycle rather than wedging with stale credentials.
		s.mu.Lock()
		s.tokenExpiry = time.Now().Add(refreshLead + time.Minute)
		s.mu.Unlock()
		s.scheduleRefresh()
		return
	}

	result := out.AuthenticationResult
	s.mu.Lock()
	s.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	s.mu.Unlock()

	if err := s.retrieveCredentials(ctx, *result.IdToken); err != nil {
		s.log.Error("failed to refresh credentials", "err", err)
	}
	s.scheduleRefresh()
}

// IdentityID returns the federated identity id, used to resolve the literal
// "self" path segment in storage keys.
func (s *Session) IdentityID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identityID
}

// Credentials returns the current federated credentials.
func (s *Session) Credentials() aws.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Sign implements Signer with SigV4 over the current federated credentials.
func (s *Session) Sign(ctx context.Context, req *http.Request, body []byte) error {
	creds := s.Credentials()
	if creds.AccessKeyID == "" {
		return fmt.Errorf("sign request: not logged on")
	}
	return s.signer.SignHTTP(ctx, creds, req, payloadHash(body), signingService, s.region, time.Now())
}
