package kernel

// Entry points of the scheduling extension.
const (
	sysSchedSetPolicy    = 320
	sysSchedGetPolicy    = 321
	sysSetRTMode         = 322
	sysSetRTTaskParam    = 323
	sysGetRTTaskParam    = 324
	sysPrepareRTTask     = 325
	sysResetStat         = 326
	sysSleepNextPeriod   = 327
	sysRegisterNPFlag    = 329
	sysSignalExitNP      = 330
	sysPISemaInit        = 331
	sysPIDown            = 332
	sysPIUp              = 333
	sysPISemaFree        = 334
	sysSemaInit          = 335
	sysDown              = 336
	sysUp                = 337
	sysSemaFree          = 338
	sysSRPSemaInit       = 339
	sysSRPDown           = 340
	sysSRPUp             = 341
	sysRegTaskSRPSem     = 342
	sysSRPSemaFree       = 343
	sysGetJobNo          = 344
	sysWaitForJobRelease = 345
)
