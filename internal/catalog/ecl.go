package catalog

// ECL 120/220 register table. Addresses are the 1-based manual (PNU)
// addresses from the Danfoss register map; the link layer subtracts 1
// on the wire.

func ptr(v float64) *float64 { return &v }

// ECLDefinitions returns the curated register set for the ECL 120/220.
// All registers start enabled; configuration overrides flip flags off.
func ECLDefinitions() []Definition {
	return []Definition{
		// Temperature sensors S1-S6.
		{Key: "s1_temperature", Name: "S1 temperature", Address: 4000, Wire: Float32, Unit: "°C", Enabled: true},
		{Key: "s2_temperature", Name: "S2 temperature", Address: 4010, Wire: Float32, Unit: "°C", Enabled: true},
		{Key: "s3_temperature", Name: "S3 temperature", Address: 4020, Wire: Float32, Unit: "°C", Enabled: true},
		{Key: "s4_temperature", Name: "S4 temperature", Address: 4030, Wire: Float32, Unit: "°C", Enabled: true},
		{Key: "s5_temperature", Name: "S5 temperature", Address: 4040, Wire: Float32, Unit: "°C", Enabled: true},
		{Key: "s6_temperature", Name: "S6 temperature", Address: 4050, Wire: Float32, Unit: "°C", Enabled: true},

		// Operating mode token register.
		{
			Key: "operating_mode", Name: "Operating mode", Address: 4200,
			Wire: Int16, Access: ReadWrite, Enabled: true,
			Enum: map[int64]string{
				0: "Manual",
				1: "Schedule",
				2: "Comfort",
				3: "Saving",
				4: "Frost protection",
			},
		},

		// Diagnostics.
		{Key: "ethernet_ip_address", Name: "Ethernet IP address", Address: 2100, Wire: String8, Enabled: true},
		{Key: "ethernet_mac_address", Name: "Ethernet MAC address", Address: 2110, Wire: String16, Enabled: true},

		// Heating circuit references and actuator state.
		{Key: "heat_flow_reference", Name: "Heat flow temperature reference", Address: 21200, Wire: Float32, Unit: "°C", Enabled: true},
		{Key: "heat_weather_comp_reference", Name: "Heat weather compensated reference", Address: 21206, Wire: Float32, Unit: "°C", Enabled: true},
		{
			Key: "heat_return_temperature_reference", Name: "Heat return temperature reference",
			Address: 21210, Wire: Float32, Access: ReadWrite, Unit: "°C",
			Min: ptr(5), Max: ptr(150), Step: ptr(0.5), Enabled: true,
		},
		{Key: "valve_position", Name: "Valve position", Address: 21700, Wire: Float32, Unit: "%", Enabled: true},
	}
}

// NewECL builds the catalog from the fixed ECL table.
func NewECL() (*Catalog, error) {
	return New(ECLDefinitions())
}
