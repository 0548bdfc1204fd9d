package protocol

// OmniSharp request commands.
const (
	AddToProject           = "/addtoproject"
	AutoComplete           = "/autocomplete"
	ChangeBuffer           = "/changebuffer"
	CheckAliveStatus       = "/checkalivestatus"
	CheckReadyStatus       = "/checkreadystatus"
	CodeCheck              = "/codecheck"
	CodeFormat             = "/codeformat"
	CurrentFileMembersTree = "/currentfilemembersastree"
	FilesChanged           = "/filesChanged"
	FindImplementations    = "/findimplementations"
	FindSymbols            = "/findsymbols"
	FindUsages             = "/findusages"
	FixUsings              = "/fixusings"
	FormatAfterKeystroke   = "/formatAfterKeystroke"
	FormatRange            = "/formatRange"
	GetCodeActions         = "/getcodeactions"
	GoToDefinition         = "/gotodefinition"
	Metadata               = "/metadata"
	NavigateDown           = "/navigatedown"
	NavigateUp             = "/navigateup"
	Project                = "/project"
	Projects               = "/projects"
	RemoveFromProject      = "/removefromproject"
	Rename                 = "/rename"
	RunCodeAction          = "/runcodeaction"
	SignatureHelp          = "/signatureHelp"
	StopServer             = "/stopserver"
	TypeLookup             = "/typelookup"
	UpdateBuffer           = "/updatebuffer"
)

// Events sent by the server.
const (
	EventStarted                = "started"
	EventLog                    = "log"
	EventError                  = "Error"
	EventProjectAdded           = "ProjectAdded"
	EventProjectChanged         = "ProjectChanged"
	EventProjectRemoved         = "ProjectRemoved"
	EventPackageRestoreStarted  = "PackageRestoreStarted"
	EventPackageRestoreFinished = "PackageRestoreFinished"
	EventUnresolvedDependencies = "UnresolvedDependencies"
	EventMsBuildDiagnostics     = "MsBuildProjectDiagnostics"
	EventTestMessage            = "TestMessage"
	EventProjectConfiguration   = "ProjectConfiguration"
)

// Events synthesized by the client.
const (
	EventStdout                = "stdout"
	EventStderr                = "stderr"
	EventServerError           = "ServerError"
	EventBeforeServerStart     = "BeforeServerStart"
	EventServerStart           = "ServerStart"
	EventServerStop            = "ServerStop"
	EventStateChanged          = "stateChanged"
	EventMultipleLaunchTargets = "server:MultipleLaunchTargets"
)
