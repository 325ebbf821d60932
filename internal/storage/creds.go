package storage

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CredentialSource yields the current federated AWS credentials; the identity
// session satisfies it and rotates them underneath.
type CredentialSource interface {
	Credentials() aws.Credentials
}

// federatedProvider adapts a CredentialSource to minio's credentials.Provider
// so the storage clients always sign with the freshest credentials.
type federatedProvider struct {
	source CredentialSource
}

func (p *federatedProvider) Retrieve() (credentials.Value, error) {
	c := p.source.Credentials()
	return credentials.Value{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		SignerType:      credentials.SignatureV4,
	}, nil
}

func (p *federatedProvider) RetrieveWithCredContext(_ *credentials.CredContext) (credentials.Value, error) {
	return p.Retrieve()
}

func (p *federatedProvider) IsExpired() bool {
	c := p.source.Credentials()
	if !c.CanExpire {
		return false
	}
	return time.Now().After(c.Expires)
}
