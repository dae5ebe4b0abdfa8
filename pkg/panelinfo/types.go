package panelinfo

// Field groups used by Fields, reports and exports
const (
	GroupIdentity  = "identity"
	GroupTiming    = "timing"
	GroupLink      = "link"
	GroupFeatures  = "features"
	GroupColor     = "color"
	GroupBacklight = "backlight"
	GroupVendor    = "vendor"
	GroupTouch     = "touch"
	GroupPower     = "power"
)

// Info is the panel capability record produced by ParseAll.
//
// Every field is optional: nil means the value was not decoded from any
// input. Decoders only ever assign, so merging a second format never clears
// what an earlier one wrote.
type Info struct {
	// Identity and geometry
	PanelPortNumber *string `json:"panel_port_number,omitempty" group:"identity"`
	EdidVersion     *string `json:"edid_version,omitempty" group:"identity"`
	Resolution      *string `json:"resolution,omitempty" group:"identity"`
	AspectRatio     *string `json:"aspect_ratio,omitempty" group:"identity"`
	HTotal          *string `json:"htotal,omitempty" group:"identity"`
	VTotal          *string `json:"vtotal,omitempty" group:"identity"`
	ScreenSizeInch  *string `json:"screen_size_inch,omitempty" group:"identity"`
	ColorDepth      *string `json:"color_depth,omitempty" group:"identity"` // "6 bpc".."16 bpc" or "Not Specified"
	FRC             *string `json:"frc,omitempty" group:"identity"`

	// Timing
	RRMinHz                 *string `json:"rr_min_hz,omitempty" group:"timing"`
	RRMaxHz                 *string `json:"rr_max_hz,omitempty" group:"timing"`
	ContinuousFreqSupported *bool   `json:"continuous_freq_supported,omitempty" group:"timing"`

	// Link
	DataLaneCount *string `json:"data_lane_count,omitempty" group:"link"`
	DataLinkRate  *string `json:"data_link_rate,omitempty" group:"link"`

	// Features
	PSR1Supported       *bool   `json:"psr1_supported,omitempty" group:"features"`
	PSR2Supported       *bool   `json:"psr2_supported,omitempty" group:"features"`
	PSR2ETSupported     *bool   `json:"psr2_et_supported,omitempty" group:"features"`
	IntelLRRVersion     *string `json:"intel_lrr_version,omitempty" group:"features"` // "Not Supported", "Yes" or "2.5"
	HDRSupported        *bool   `json:"hdr_supported,omitempty" group:"features"`
	VRRSupported        *bool   `json:"vrr_supported,omitempty" group:"features"`
	VDSCVersion         *string `json:"vdsc_version,omitempty" group:"features"`
	CoGMSO              *string `json:"cog_mso,omitempty" group:"features"`
	IIDTUBRR            *bool   `json:"iidt_ubrr,omitempty" group:"features"`
	CameraSensorForUBRR *string `json:"camera_sensor_for_ubrr,omitempty" group:"features"`
	SeamlessDRRS        *bool   `json:"seamless_drrs,omitempty" group:"features"`
	XPSTSupported       *bool   `json:"xpst_supported,omitempty" group:"features"`
	XPSTLevel           *int    `json:"xpst_level,omitempty" group:"features"`
	OPSTELP             *bool   `json:"opst_elp,omitempty" group:"features"`
	DEEarlyWake         *bool   `json:"de_early_wake,omitempty" group:"features"`
	EPSM60              *bool   `json:"epsm60,omitempty" group:"features"`
	EGEnduranceGaming   *bool   `json:"eg_endurance_gaming,omitempty" group:"features"`
	EDP15PanelReplay    *string `json:"edp1_5_panel_replay,omitempty" group:"features"`
	EDP15PRET           *string `json:"edp1_5_pr_et,omitempty" group:"features"`
	EDP15CMRR           *bool   `json:"edp1_5_cmrr,omitempty" group:"features"`
	EDP15PeriodicASSDP  *bool   `json:"edp1_5_periodic_assdp,omitempty" group:"features"`
	EDP15LOBF           *bool   `json:"edp1_5_lobf,omitempty" group:"features"`
	OtherFeatures       *string `json:"other_features,omitempty" group:"features"`

	// Color gamut
	ColorGamutSRGB     *string `json:"color_gamut_srgb,omitempty" group:"color"`
	ColorGamutDCIP3    *string `json:"color_gamut_dci_p3,omitempty" group:"color"`
	ColorGamutAdobeRGB *string `json:"color_gamut_adobe_rgb,omitempty" group:"color"`
	ColorGamutNTSC     *string `json:"color_gamut_ntsc,omitempty" group:"color"`

	// Backlight
	MaxBrightnessNits       *string `json:"max_brightness_nits,omitempty" group:"backlight"`
	BacklightLightSource    *string `json:"backlight_light_source,omitempty" group:"backlight"`
	DimmingControl          *string `json:"dimming_control,omitempty" group:"backlight"`
	BacklightControl        *string `json:"backlight_control,omitempty" group:"backlight"`
	BrightnessPrecisionBits *string `json:"brightness_precision_bits,omitempty" group:"backlight"`

	// Panel and TCON vendor
	PanelVendor          *string `json:"panel_vendor,omitempty" group:"vendor"` // 3-letter PNP ID
	PanelPartNumber      *string `json:"panel_part_number,omitempty" group:"vendor"`
	TConVendor           *string `json:"tcon_vendor,omitempty" group:"vendor"`
	TConPartNumber       *string `json:"tcon_part_number,omitempty" group:"vendor"`
	PanelTConReleaseYear *string `json:"panel_tcon_release_year,omitempty" group:"vendor"`
	PanelHWVersion       *string `json:"panel_hw_version,omitempty" group:"vendor"`

	// Touch
	TouchHostController       *bool   `json:"touch_host_controller,omitempty" group:"touch"`
	TouchScreenOrPad          *string `json:"touch_screen_or_pad,omitempty" group:"touch"`
	TouchHostControllerVendor *string `json:"touch_host_controller_vendor,omitempty" group:"touch"`
	TouchSupport              *bool   `json:"touch_support,omitempty" group:"touch"`
	TouchType                 *string `json:"touch_type,omitempty" group:"touch"`
	TouchInterface            *string `json:"touch_interface,omitempty" group:"touch"`
	StylusProtocol            *string `json:"stylus_protocol,omitempty" group:"touch"`

	// Power
	BacklightPowerConsumption *string `json:"backlight_power_consumption,omitempty" group:"power"`
	DataLogicPowerConsumption *string `json:"data_logic_power_consumption,omitempty" group:"power"`
	TotalPowerConsumption     *string `json:"total_power_consumption,omitempty" group:"power"`
	PanelDCVoltage            *string `json:"panel_dc_voltage,omitempty" group:"power"`
	VBattPOL                  *string `json:"vbatt_pol,omitempty" group:"power"`

	// Sources lists the formats that were decoded into this record, in order
	Sources []string `json:"sources,omitempty"`
}

// Input format names
const (
	FormatEDID = "edid"
	FormatVBT  = "vbt"
	FormatDPCD = "dpcd"
)

func str(s string) *string { return &s }

func flag(b bool) *bool { return &b }

// Value returns the string a pointer refers to, or "" when it is nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
