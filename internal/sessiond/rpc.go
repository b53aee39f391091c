package sessiond

// Wire contract for the gRPC surface. The service is defined by hand rather
// than generated: requests and responses travel as structpb payloads, so the
// method set and full method names below are the whole contract.
const ServiceName = "turboinfra.v1.SessionService"

const (
	MethodGetHealth     = "/" + ServiceName + "/GetHealth"
	MethodCreateSession = "/" + ServiceName + "/CreateSession"
	MethodGetSession    = "/" + ServiceName + "/GetSession"
	MethodListSessions  = "/" + ServiceName + "/ListSessions"
	MethodStartSession  = "/" + ServiceName + "/StartSession"
	MethodCancelSession = "/" + ServiceName + "/CancelSession"
	MethodGetHistory    = "/" + ServiceName + "/GetHistory"
	MethodGetMetrics    = "/" + ServiceName + "/GetMetrics"
)
