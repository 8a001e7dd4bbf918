package olcb

// MTI constants. Every value here except MTIDatagram fits in 12 bits, which
// is what lets the CAN mapping in frame.go place an MTI directly into the
// variable field of a global/addressed identifier without truncation.
// MTIDatagram never goes into an identifier: datagram frames carry their
// kind in the frame-type field instead (see fragment.go).
const (
	MTIInitializationComplete       MTI = 0x0100
	MTIInitializationCompleteSimple MTI = 0x0101
	MTIVerifiedNodeID               MTI = 0x0170
	MTIOptionalInteractionRejected  MTI = 0x0068
	MTITerminateDueToError          MTI = 0x00A8
	MTIProtocolSupportInquiry       MTI = 0x0828
	MTIProtocolSupportReply         MTI = 0x0668
	MTIVerifyNodeIDGlobal           MTI = 0x0490
	MTIVerifyNodeIDAddressed        MTI = 0x0488

	MTIConsumerRangeIdentified    MTI = 0x04A4
	MTIConsumerIdentifiedUnknown  MTI = 0x04C7
	MTIConsumerIdentifiedSet      MTI = 0x04C4
	MTIConsumerIdentifiedClear    MTI = 0x04C5
	MTIConsumerIdentifiedReserved MTI = 0x04C6

	MTIProducerRangeIdentified    MTI = 0x0544
	MTIProducerIdentifiedUnknown  MTI = 0x0547
	MTIProducerIdentifiedSet      MTI = 0x0545
	MTIProducerIdentifiedClear    MTI = 0x0546
	MTIProducerIdentifiedReserved MTI = 0x0548

	MTIIdentifyConsumers     MTI = 0x08F4
	MTIIdentifyProducers     MTI = 0x0914
	MTIIdentifyEventsGlobal  MTI = 0x0970
	MTIIdentifyEventsAddr    MTI = 0x0968
	MTILearnEvent            MTI = 0x0594
	MTIPCEventReport         MTI = 0x05B4
	MTIPCEventReportPayload  MTI = 0x05B6

	MTIDatagram           MTI = 0x1C48
	MTIDatagramReceivedOK MTI = 0x0A28
	MTIDatagramRejected   MTI = 0x0A48

	MTIStreamInitiateRequest MTI = 0x0CC8
	MTIStreamInitiateReply   MTI = 0x0CC9
	MTIStreamProceed         MTI = 0x0CCA
	MTIStreamComplete        MTI = 0x0CCB

	MTISimpleNodeInfoRequest MTI = 0x0DE8
	MTISimpleNodeInfoReply   MTI = 0x0A08

	MTITractionControlCommand MTI = 0x05CA
	MTITractionControlReply  MTI = 0x05CB
)

// consumerIdentifiedMTI picks the Consumer-Identified MTI matching an
// event's current state.
func consumerIdentifiedMTI(s EventState) MTI {
	switch s {
	case EventValid:
		return MTIConsumerIdentifiedSet
	case EventInvalid:
		return MTIConsumerIdentifiedClear
	case EventReserved:
		return MTIConsumerIdentifiedReserved
	default:
		return MTIConsumerIdentifiedUnknown
	}
}

func producerIdentifiedMTI(s EventState) MTI {
	switch s {
	case EventValid:
		return MTIProducerIdentifiedSet
	case EventInvalid:
		return MTIProducerIdentifiedClear
	case EventReserved:
		return MTIProducerIdentifiedReserved
	default:
		return MTIProducerIdentifiedUnknown
	}
}
