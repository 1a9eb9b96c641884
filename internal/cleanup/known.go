package cleanup

// KnownProcesses are vendor RGB tools that hold controllers open.
var KnownProcesses = []string{
	// Corsair iCUE
	"iCUEService",
	"iCUE",
	"CorsairService",
	"CorsairLLAService",
	"CorsairGamingAudioCfgService",

	// ASUS Armoury Crate / Aura
	"ArmouryCrate.Service",
	"ArmouryCrate.UserSessionHelper",
	"ArmourySocketServer",
	"AsusSystemAnalysis",
	"AsusSystemDiagnosis",
	"AsusCertService",
	"AuraService",
	"LightingService",
	"AsusUpdateCheck",
	"GameVisual",

	// Razer Synapse / Chroma
	"RzSDKService",
	"RzActionSvc",
	"RazerCentralService",
	"Razer Synapse Service",
	"RazerIngameEngine",
	"RzChromaSDKService",
	"RzChromaStreamServer",

	// MSI
	"MSIAfterburner",
	"MSICM",
	"MSI_LED_Tool",
	"MSIDragonCenter",
	"MysticLight",
	"MSI_SDK",

	// NZXT CAM
	"CAM",
	"NZXTCamService",
	"CamService",

	// Gigabyte
	"GigabyteRGB",
	"RGBFusion",
	"GCC",
	"RGBFusion2",

	// ASRock
	"AsrPollingService",
	"AsrKernelService",
	"AsrLED",
	"Polychrome RGB",

	// EVGA
	"EVGA Precision X1",
	"LEDSync",

	// SignalRGB
	"SignalRgb",
	"SignalRgbService",

	// Cooler Master
	"MasterPlus",
	"CMPortal",

	// Thermaltake
	"TTRGBPlus",
	"ThermaltakeTT",

	// EKWB
	"EKWB-Connect",
	"EKConnect",

	// NVIDIA
	"NvidiaGPU",
	"NvBackend",

	// Logitech
	"LGHUB",
	"LCore",
	"LogiOverlay",

	// SteelSeries
	"SteelSeriesEngine3",
	"GG",
	"SteelSeriesGG",

	// HyperX
	"HyperXNGenuity",
	"NGenuity",

	"RGBController",
	"LEDkeeper",
	"JackNet RGB Sync",
}

// KnownServices are stopped through the service manager.
var KnownServices = []string{
	"ArmouryCrateControlInterface",
	"AsusHalSensor",
	"CorsairService",
	"RzSDKService",
	"RzActionSvc",
	"CAMService",
}
