// Package secrets retrieves credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Manager fetches secret strings by name.
type Manager struct {
	client secretsAPI
}

// NewManager wraps a Secrets Manager client.
func NewManager(client secretsAPI) *Manager {
	if client == nil {
		panic("secrets: client cannot be nil")
	}
	return &Manager{client: client}
}

// GetSecret returns the secret's string payload.
func (m *Manager) GetSecret(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("secrets: name required")
	}

	output, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to retrieve %s: %w", name, err)
	}
	if output.SecretString == nil || *output.SecretString == "" {
		return nil, fmt.Errorf("secrets: %s has an empty string payload", name)
	}
	return []byte(*output.SecretString), nil
}
