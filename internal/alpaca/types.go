package alpaca

// DiscoveryResponse is the JSON payload an Alpaca server unicasts back after
// receiving a discovery broadcast. AlpacaPort is the only required field; a
// reply without it is not a valid Alpaca discovery response.
type DiscoveryResponse struct {
	AlpacaPort int `json:"AlpacaPort"`
}

// ServerDescription is the metadata block returned by
// GET /management/v1/description.
type ServerDescription struct {
	ServerName          string `json:"ServerName"`
	Manufacturer        string `json:"Manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion"`
	Location            string `json:"Location"`
}

// ConfiguredDevice is one entry from GET /management/v1/configureddevices.
// DeviceNumber is zero-based and unique per device type on a server.
type ConfiguredDevice struct {
	DeviceName   string `json:"DeviceName"`
	DeviceType   string `json:"DeviceType"`
	DeviceNumber int    `json:"DeviceNumber"`
	UniqueID     string `json:"UniqueID"`
}

// responseFields are the transaction echo fields every Alpaca management and
// device response carries.
type responseFields struct {
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
}

// descriptionResponse wraps the /management/v1/description envelope.
type descriptionResponse struct {
	responseFields
	Value ServerDescription `json:"Value"`
}

// configuredDevicesResponse wraps the /management/v1/configureddevices envelope.
type configuredDevicesResponse struct {
	responseFields
	Value []ConfiguredDevice `json:"Value"`
}

// apiVersionsResponse wraps the /management/apiversions envelope.
type apiVersionsResponse struct {
	responseFields
	Value []int `json:"Value"`
}

// deviceResponse wraps a per-device Alpaca API envelope. ErrorNumber is zero
// on success; a non-zero ErrorNumber with HTTP 200 is how Alpaca devices
// report command failures.
type deviceResponse struct {
	responseFields
	ErrorNumber  int    `json:"ErrorNumber"`
	ErrorMessage string `json:"ErrorMessage"`
}
