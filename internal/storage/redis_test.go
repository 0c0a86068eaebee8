package storage

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client, err := NewRedisClient(mr.Addr(), "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis client: %v", err)
	}

	return client, mr
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer client.Close()

	if client == nil {
		t.Fatal("NewRedisClient returned nil")
	}
}

func TestNewRedisClientInvalid(t *testing.T) {
	_, err := NewRedisClient("invalid:9999", "", 0)
	if err == nil {
		t.Error("NewRedisClient should return error for invalid address")
	}
}

func TestBlacklist(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	address := "0xblacklisted"

	blacklisted, err := client.IsBlacklisted(address)
	if err != nil {
		t.Fatalf("IsBlacklisted() error = %v", err)
	}
	if blacklisted {
		t.Error("Address should not be blacklisted initially")
	}

	if err := client.AddToBlacklist(address); err != nil {
		t.Fatalf("AddToBlacklist() error = %v", err)
	}

	blacklisted, err = client.IsBlacklisted(address)
	if err != nil {
		t.Fatalf("IsBlacklisted() error = %v", err)
	}
	if !blacklisted {
		t.Error("Address should be blacklisted")
	}

	list, err := client.GetBlacklist()
	if err != nil {
		t.Fatalf("GetBlacklist() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("GetBlacklist() returned %d items, want 1", len(list))
	}

	if err := client.RemoveFromBlacklist(address); err != nil {
		t.Fatalf("RemoveFromBlacklist() error = %v", err)
	}

	blacklisted, _ = client.IsBlacklisted(address)
	if blacklisted {
		t.Error("Address should not be blacklisted after removal")
	}
}

func TestWhitelist(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ip := "192.168.1.100"

	whitelisted, err := client.IsWhitelisted(ip)
	if err != nil {
		t.Fatalf("IsWhitelisted() error = %v", err)
	}
	if whitelisted {
		t.Error("IP should not be whitelisted initially")
	}

	if err := client.AddToWhitelist(ip); err != nil {
		t.Fatalf("AddToWhitelist() error = %v", err)
	}

	whitelisted, err = client.IsWhitelisted(ip)
	if err != nil {
		t.Fatalf("IsWhitelisted() error = %v", err)
	}
	if !whitelisted {
		t.Error("IP should be whitelisted")
	}

	list, err := client.GetWhitelist()
	if err != nil {
		t.Fatalf("GetWhitelist() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("GetWhitelist() returned %d items, want 1", len(list))
	}

	if err := client.RemoveFromWhitelist(ip); err != nil {
		t.Fatalf("RemoveFromWhitelist() error = %v", err)
	}

	whitelisted, _ = client.IsWhitelisted(ip)
	if whitelisted {
		t.Error("IP should not be whitelisted after removal")
	}
}
