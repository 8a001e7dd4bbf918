// Package nodeconfig loads a node's identity and NodeParameters from a
// YAML file, the structured equivalent of a hand-rolled config-file
// parser: one file, one pass, strict about what it accepts.
package nodeconfig

/*-------------------------------------------------------------------
 *
 * Purpose:  Read node configuration from a YAML file for cmd/olcbnode,
 *           generalizing the one-file-describes-one-
 *           runtime shape to a declarative document instead of a
 *           line-oriented keyword parser, since NodeParameters has a
 *           fixed, fully-typed shape and doesn't need one.
 *
 *-----------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/olcb-project/olcb"
)

// EventSpec is one producer/consumer entry in the YAML file: either a
// bare 64-bit event ID or a base ID with a trailing-ones range mask
// width, matching olcb.RangeBase's encoding.
type EventSpec struct {
	ID    string `yaml:"id"`
	Range int    `yaml:"range,omitempty"` // number of trailing wildcard bits, 0 for an exact event
}

// AddressSpaceSpec configures one configuration-memory address space by
// name (cdi, all, config, acdi_mfg, acdi_user, firmware).
type AddressSpaceSpec struct {
	ReadOnly        bool   `yaml:"read_only"`
	LowAddressValid bool   `yaml:"low_address_valid"`
	LowAddress      uint32 `yaml:"low_address"`
	HighestAddress  uint32 `yaml:"highest_address"`
	Description     string `yaml:"description"`
}

// File is the top-level shape of a node configuration file.
type File struct {
	NodeID          string                       `yaml:"node_id"`
	Manufacturer    string                       `yaml:"manufacturer"`
	Model           string                       `yaml:"model"`
	HardwareVersion string                       `yaml:"hardware_version"`
	SoftwareVersion string                       `yaml:"software_version"`
	ProtocolSupport []string                     `yaml:"protocol_support"`
	AddressSpaces   map[string]AddressSpaceSpec  `yaml:"address_spaces"`
	CDIFile         string                       `yaml:"cdi_file"`
	Producers       []EventSpec                  `yaml:"producers"`
	Consumers       []EventSpec                  `yaml:"consumers"`

	Driver struct {
		Kind      string `yaml:"kind"` // socketcan | gridconnect | gridconnect-pty
		Interface string `yaml:"interface,omitempty"`
		Address   string `yaml:"address,omitempty"`
		GPIOChip  string `yaml:"gpio_chip,omitempty"`
		GPIOLine  int    `yaml:"gpio_line,omitempty"`
	} `yaml:"driver"`
}

var protocolBits = map[string]uint64{
	"simple_node_information":   olcb.ProtocolSimpleNodeInformation,
	"datagram":                  olcb.ProtocolDatagram,
	"configuration_description": olcb.ProtocolConfigurationDescription,
	"stream":                    olcb.ProtocolStream,
	"event_exchange":            olcb.ProtocolEventExchange,
	"simple_train_control":      olcb.ProtocolSimpleTrainControl,
	"traction_control":          olcb.ProtocolTractionControl,
	"cdi":                       olcb.ProtocolCDI,
	"display":                   olcb.ProtocolDisplay,
	"identification":            olcb.ProtocolIdentification,
	"identification_mfg":        olcb.ProtocolIdentificationMfg,
}

var addressSpaceIDs = map[string]byte{
	"cdi":                        olcb.SpaceCDI,
	"all":                        olcb.SpaceAll,
	"config":                     olcb.SpaceConfig,
	"acdi_mfg":                   olcb.SpaceACDIMfg,
	"acdi_user":                  olcb.SpaceACDIUser,
	"train_function_def":         olcb.SpaceTrainFunctionDef,
	"train_function_config":      olcb.SpaceTrainFunctionConfig,
	"firmware":                   olcb.SpaceFirmware,
}

// Load reads and parses path into a File.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nodeconfig: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("nodeconfig: parse %s: %w", path, err)
	}
	return &f, nil
}

// NodeID parses the configured 48-bit node identity, e.g. "02.01.02.03.04.05".
func (f *File) NodeID() (olcb.NodeID, error) {
	var b [6]byte
	n, err := fmt.Sscanf(f.NodeID, "%02x.%02x.%02x.%02x.%02x.%02x",
		&b[0], &b[1], &b[2], &b[3], &b[4], &b[5])
	if err != nil || n != 6 {
		return 0, fmt.Errorf("nodeconfig: bad node_id %q", f.NodeID)
	}
	var id olcb.NodeID
	for _, byt := range b {
		id = id<<8 | olcb.NodeID(byt)
	}
	return id, nil
}

// Params builds the olcb.NodeParameters this file describes. The CDI
// blob, if cdi_file is set, is read relative to the working directory.
func (f *File) Params() (*olcb.NodeParameters, error) {
	params := &olcb.NodeParameters{
		Manufacturer:    f.Manufacturer,
		Model:           f.Model,
		HardwareVersion: f.HardwareVersion,
		SoftwareVersion: f.SoftwareVersion,
		AddressSpaces:   make(map[byte]olcb.AddressSpace),
	}

	for _, name := range f.ProtocolSupport {
		bit, ok := protocolBits[name]
		if !ok {
			return nil, fmt.Errorf("nodeconfig: unknown protocol_support entry %q", name)
		}
		params.ProtocolSupport |= bit
	}

	for name, spec := range f.AddressSpaces {
		id, ok := addressSpaceIDs[name]
		if !ok {
			return nil, fmt.Errorf("nodeconfig: unknown address space %q", name)
		}
		params.AddressSpaces[id] = olcb.AddressSpace{
			Present:         true,
			ReadOnly:        spec.ReadOnly,
			LowAddressValid: spec.LowAddressValid,
			LowAddress:      spec.LowAddress,
			HighestAddress:  spec.HighestAddress,
			Description:     spec.Description,
		}
	}

	if f.CDIFile != "" {
		cdi, err := os.ReadFile(f.CDIFile)
		if err != nil {
			return nil, fmt.Errorf("nodeconfig: read cdi_file %s: %w", f.CDIFile, err)
		}
		params.CDI = cdi
	}

	var err error
	if params.Producers, err = parseEvents(f.Producers); err != nil {
		return nil, err
	}
	if params.Consumers, err = parseEvents(f.Consumers); err != nil {
		return nil, err
	}
	return params, nil
}

func parseEvents(specs []EventSpec) ([]olcb.EventID, error) {
	out := make([]olcb.EventID, 0, len(specs))
	for _, s := range specs {
		var raw uint64
		if _, err := fmt.Sscanf(s.ID, "%016x", &raw); err != nil {
			return nil, fmt.Errorf("nodeconfig: bad event id %q: %w", s.ID, err)
		}
		ev := olcb.EventID(raw)
		if s.Range > 0 {
			mask := olcb.EventID(1)<<uint(s.Range) - 1
			ev = (ev &^ mask) | mask // set the low Range bits to form the trailing-ones marker
		}
		out = append(out, ev)
	}
	return out, nil
}
