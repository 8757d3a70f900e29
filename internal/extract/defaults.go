package extract

// OpenCore defaults, as of the 1.0.x configuration reference. The
// *Defaults maps back Full mode (defaults overlaid with actual values);
// the *QuirkDefaults and miscBootFilteredDefaults maps back Filtered mode
// (values equal to a default are dropped).

var miscSecurityDefaults = map[string]interface{}{
	"SecureBootModel":      "Default",
	"Vault":                "Optional",
	"ScanPolicy":           0,
	"AllowSetDefault":      true,
	"ExposeSensitiveData":  6,
	"AuthRestart":          false,
	"BlacklistAppleUpdate": true,
	"DmgLoading":           "Signed",
	"EnablePassword":       false,
	"HaltLevel":            int64(2147483648),
}

var miscBootDefaults = map[string]interface{}{
	"Timeout":              5,
	"PickerMode":           "Builtin",
	"PollAppleHotKeys":     false,
	"ShowPicker":           true,
	"HideAuxiliary":        true,
	"PickerAttributes":     1,
	"PickerAudioAssist":    false,
	"PickerVariant":        "Auto",
	"ConsoleAttributes":    0,
	"TakeoffDelay":         0,
	"HibernateMode":        "None",
	"HibernateSkipsPicker": false,
	"InstanceIdentifier":   "",
	"LauncherOption":       "Disabled",
	"LauncherPath":         "Default",
}

var miscDebugDefaults = map[string]interface{}{
	"Target":          0,
	"AppleDebug":      false,
	"ApplePanic":      false,
	"DisableWatchDog": false,
	"SysReport":       false,
	"DisplayDelay":    0,
	"DisplayLevel":    int64(2147483650),
	"LogModules":      "*",
}

var miscSerialDefaults = map[string]interface{}{
	"Init":     false,
	"Override": false,
}

var uefiOutputDefaults = map[string]interface{}{
	"Resolution":                 "Max",
	"UIScale":                    0,
	"TextRenderer":               "BuiltinGraphics",
	"ConsoleMode":                "",
	"ConsoleFont":                "",
	"ClearScreenOnModeSwitch":    false,
	"DirectGopRendering":         false,
	"ForceResolution":            false,
	"GopBurstMode":               false,
	"GopPassThrough":             "Disabled",
	"IgnoreTextInGraphics":       false,
	"InitialMode":                "Auto",
	"ProvideConsoleGop":          true,
	"ReconnectGraphicsOnConnect": false,
	"ReconnectOnResChange":       false,
	"ReplaceTabWithSpace":        false,
	"SanitiseClearScreen":        false,
	"UgaPassThrough":             false,
}

var uefiAPFSDefaults = map[string]interface{}{
	"EnableJumpstart":  true,
	"GlobalConnect":    false,
	"HideVerbose":      true,
	"JumpstartHotPlug": false,
	"MinDate":          0,
	"MinVersion":       0,
}

var uefiQuirksDefaults = map[string]interface{}{
	"ActivateHpetSupport":      false,
	"DisableSecurityPolicy":    false,
	"EnableVectorAcceleration": true,
	"EnableVmx":                false,
	"ExitBootServicesDelay":    0,
	"ForceOcWriteFlash":        false,
	"ForgeUefiSupport":         false,
	"IgnoreInvalidFlexRatio":   false,
	"ReleaseUsbOwnership":      false,
	"ReloadOptionRoms":         false,
	"RequestBootVarRouting":    true,
	"ResizeGpuBars":            -1,
	"ResizeUsePciRbIo":         false,
	"ShimRetainProtocol":       false,
	"TscSyncTimeout":           0,
	"UnblockFsConnect":         false,
}

var booterQuirkDefaults = map[string]interface{}{
	"AllowRelocationBlock":   false,
	"AvoidRuntimeDefrag":     false,
	"ClearTaskSwitchBit":     false,
	"DevirtualiseMmio":       false,
	"DisableSingleUser":      false,
	"DisableVariableWrite":   false,
	"DiscardHibernateMap":    false,
	"EnableSafeModeSlide":    false,
	"EnableWriteUnprotector": false,
	"FixupAppleEfiImages":    true,
	"ForceBooterSignature":   false,
	"ForceExitBootServices":  false,
	"ProtectMemoryRegions":   false,
	"ProtectSecureBoot":      false,
	"ProtectUefiServices":    false,
	"ProvideCustomSlide":     false,
	"ProvideMaxSlide":        0,
	"RebuildAppleMemoryMap":  false,
	"ResizeAppleGpuBars":     -1,
	"SetupVirtualMap":        true,
	"SignalAppleOS":          false,
	"SyncRuntimePermissions": false,
}

var kernelQuirkDefaults = map[string]interface{}{
	"AppleCpuPmCfgLock":       false,
	"AppleXcpmCfgLock":        false,
	"AppleXcpmExtraMsrs":      false,
	"AppleXcpmForceBoost":     false,
	"CustomPciSerialDevice":   false,
	"CustomSMBIOSGuid":        false,
	"DisableIoMapper":         false,
	"DisableIoMapperMapping":  false,
	"DisableLinkeditJettison": false,
	"DisableRtcChecksum":      false,
	"ExtendBTFeatureFlags":    false,
	"ExternalDiskIcons":       false,
	"ForceAquantiaEthernet":   false,
	"ForceSecureBootScheme":   false,
	"IncreasePciBarSize":      false,
	"LapicKernelPanic":        false,
	"LegacyCommpage":          false,
	"PanicNoKextDump":         false,
	"PowerTimeoutKernelPanic": false,
	"ProvideCurrentCpuInfo":   false,
	"SetApfsTrimTimeout":      -1,
	"ThirdPartyDrives":        false,
	"XhciPortLimit":           false,
}

var acpiQuirkDefaults = map[string]interface{}{
	"FadtEnableReset":  false,
	"NormalizeHeaders": false,
	"RebaseRegions":    false,
	"ResetHwSig":       false,
	"ResetLogoStatus":  false,
	"SyncTableIds":     false,
}

var miscBootFilteredDefaults = map[string]interface{}{
	"HideAuxiliary":    false,
	"ShowPicker":       true,
	"Timeout":          5,
	"PickerMode":       "Builtin",
	"PickerAttributes": 1,
	"TakeoffDelay":     0,
	"HibernateMode":    "None",
	"LauncherOption":   "Disabled",
	"LauncherPath":     "Default",
}
