package policy

import (
	"fmt"
	"net/netip"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"firestige.xyz/shipswitch/internal/core"
)

// nodeSpec is one `[policy.<key>]` entry of the policy file.
type nodeSpec struct {
	Name     string     `mapstructure:"name"`
	Iface    string     `mapstructure:"iface"`
	MAC      core.MAC   `mapstructure:"mac"`
	IP       netip.Addr `mapstructure:"ip"`
	Sends    []string   `mapstructure:"sends"`
	Receives []string   `mapstructure:"receives"`
}

// Load reads a policy file and returns its nodes in port order. Ports are
// assigned by sorted policy key so a file always yields the same layout.
// Keys are case-insensitive: viper lowercases them, so [policy.GPS] loads
// with Key "gps" and sorts as "gps". Name keeps its case and defaults to
// the lowercased key.
//
// The file format follows the extension (toml, yaml or json):
//
//	[policy.gyro]
//	name = "Gyro"
//	iface = "veth-gyro"
//	mac = "02:00:00:00:00:01"
//	ip = "10.0.0.1"
//	sends = ["$HEHDT"]
//	receives = []
func Load(path string) ([]Node, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read policy %s: %v", core.ErrConfigInvalid, path, err)
	}

	raw, ok := v.Get("policy").(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s has no policy table", core.ErrConfigInvalid, path)
	}

	specs := make(map[string]nodeSpec, len(raw))
	if err := decode(raw, &specs); err != nil {
		return nil, fmt.Errorf("%w: policy %s: %v", core.ErrConfigInvalid, path, err)
	}

	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	for port, key := range keys {
		s := specs[key]
		if s.MAC == (core.MAC{}) {
			return nil, fmt.Errorf("%w: policy %q has no mac", core.ErrConfigInvalid, key)
		}
		if !s.IP.IsValid() {
			return nil, fmt.Errorf("%w: policy %q has no ip", core.ErrConfigInvalid, key)
		}
		name := s.Name
		if name == "" {
			name = key
		}
		nodes = append(nodes, Node{
			Port:     port,
			Key:      key,
			Name:     name,
			Iface:    s.Iface,
			MAC:      s.MAC,
			IP:       s.IP,
			Sends:    NewPrefixSet(s.Sends...),
			Receives: NewPrefixSet(s.Receives...),
		})
	}
	return nodes, nil
}

// LoadTable loads a policy file and builds its Table.
func LoadTable(path string) (*Table, error) {
	nodes, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewTable(nodes)
}

func decode(input interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToMACHook,
			stringToIPv4Hook,
		),
		Result: out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

var (
	macType  = reflect.TypeOf(core.MAC{})
	addrType = reflect.TypeOf(netip.Addr{})
)

func stringToMACHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != macType {
		return data, nil
	}
	return core.ParseMAC(data.(string))
}

func stringToIPv4Hook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != addrType {
		return data, nil
	}
	return core.ParseIPv4(data.(string))
}
