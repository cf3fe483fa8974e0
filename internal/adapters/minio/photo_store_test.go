package minioadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/baenkli/internal/pkg/config"
)

func TestPublicBase(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"endpoint http", config.StorageConfig{Endpoint: "minio:9000"}, "http://minio:9000"},
		{"endpoint https", config.StorageConfig{Endpoint: "s3.example.ch", UseSSL: true}, "https://s3.example.ch"},
		{"public url wins", config.StorageConfig{Endpoint: "minio:9000", PublicURL: "https://cdn.example.ch/"}, "https://cdn.example.ch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBase(tt.cfg))
		})
	}
}

func TestPhotoStore_PublicURL(t *testing.T) {
	s := &PhotoStore{bucket: "bench-photos", publicBase: "http://minio:9000"}

	assert.Equal(t, "http://minio:9000/bench-photos/1714557600000-ab12cd34-bank.jpg",
		s.PublicURL("1714557600000-ab12cd34-bank.jpg"))
	assert.Equal(t, "http://minio:9000/bench-photos/a%20b.jpg", s.PublicURL("a b.jpg"))
}
