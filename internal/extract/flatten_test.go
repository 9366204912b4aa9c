package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSimpleVaultVariables(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
vault_pihole_admin_password: "changeme123"
vault_pihole_api_token: abc123
`)

	secrets, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	require.Len(t, secrets, 2)
	assert.Equal(t, Secret{Key: "vault_pihole_admin_password", Value: "changeme123"}, secrets[0])
	assert.Equal(t, Secret{Key: "vault_pihole_api_token", Value: "abc123"}, secrets[1])
}

func TestExtractFlattensNestedVaultVariables(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
vault_tor:
  exit_nodes:
    - ip: 10.0.0.1
      port: 9001
    - ip: 10.0.0.2
      port: 9002
`)

	secrets, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	keys := make([]string, len(secrets))
	for i, s := range secrets {
		keys[i] = s.Key
	}
	assert.Equal(t, []string{
		"vault_tor.exit_nodes.0.ip",
		"vault_tor.exit_nodes.0.port",
		"vault_tor.exit_nodes.1.ip",
		"vault_tor.exit_nodes.1.port",
	}, keys)
	assert.Equal(t, "10.0.0.1", secrets[0].Value)
	assert.Equal(t, "9001", secrets[1].Value)
}

func TestExtractOpaqueBlobRoundTrip(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
wireguard_config:
  private_key: wg-priv-123
  peers:
    - endpoint: 1.2.3.4:51820
      allowed_ips:
        - 10.8.0.0/24
`)

	secrets, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	// One entry: the whole subtree serialized once, not recursively flattened
	require.Len(t, secrets, 1)
	assert.Equal(t, "wireguard_config", secrets[0].Key)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(secrets[0].Value), &parsed))
	assert.Equal(t, "wg-priv-123", parsed["private_key"])
	peers := parsed["peers"].([]interface{})
	require.Len(t, peers, 1)
	peer := peers[0].(map[string]interface{})
	assert.Equal(t, "1.2.3.4:51820", peer["endpoint"])
}

func TestExtractMixedModesInOneFile(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
vault_db_password: s3cret
grafana_datasources:
  - name: prometheus
    url: http://prom:9090
`)

	secrets, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	require.Len(t, secrets, 2)
	assert.Equal(t, "vault_db_password", secrets[0].Key)
	assert.Equal(t, "s3cret", secrets[0].Value)
	assert.Equal(t, "grafana_datasources", secrets[1].Key)
	assert.True(t, json.Valid([]byte(secrets[1].Value)))
}

func TestExtractSkipsNulls(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
vault_enabled_key: value
vault_disabled_key: null
vault_also_disabled: ~
`)

	secrets, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	require.Len(t, secrets, 1)
	assert.Equal(t, "vault_enabled_key", secrets[0].Key)
}

func TestExtractCanonicalScalars(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
vault_flag_true: True
vault_flag_false: "false"
vault_port: 0x50
vault_ratio: 0.50
vault_version: "1.10"
`)

	secrets, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	byKey := map[string]string{}
	for _, s := range secrets {
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, "true", byKey["vault_flag_true"])
	assert.Equal(t, "false", byKey["vault_flag_false"], "quoted strings pass through")
	assert.Equal(t, "80", byKey["vault_port"])
	assert.Equal(t, "0.5", byKey["vault_ratio"])
	assert.Equal(t, "1.10", byKey["vault_version"], "quoted version strings are not numbers")
}

func TestExtractEmptyDocument(t *testing.T) {
	t.Parallel()

	secrets, err := NewExtractor("vault_").Extract([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, secrets)
}

func TestExtractRejectsNonMappingRoot(t *testing.T) {
	t.Parallel()

	_, err := NewExtractor("vault_").Extract([]byte("- a\n- b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top-level mapping")
}

func TestExtractRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := NewExtractor("vault_").Extract([]byte("key: [unclosed"))
	assert.Error(t, err)
}

func TestExtractDeterministicOrder(t *testing.T) {
	t.Parallel()

	yamlBytes := []byte(`
vault_z: 1
vault_a: 2
vault_m: 3
`)

	first, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)
	second, err := NewExtractor("vault_").Extract(yamlBytes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Document order, not sorted
	assert.Equal(t, "vault_z", first[0].Key)
	assert.Equal(t, "vault_a", first[1].Key)
}
