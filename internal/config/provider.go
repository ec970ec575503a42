// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// Provider loads project configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Project, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider backed by the project file.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Project, error) {
	return Load(ctx, opts)
}
