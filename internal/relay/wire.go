package relay

import "heartline/internal/domain"

type publishRequest struct {
	Code  domain.PairingCode `json:"code"`
	TTLms int64              `json:"ttl_ms"`
}

type swapRequest struct {
	Value string `json:"value"`
	TTLms int64  `json:"ttl_ms"`
}

type swapResponse struct {
	Previous string `json:"previous"`
}

type acceptanceRequest struct {
	Acceptance domain.Acceptance `json:"acceptance"`
	TTLms      int64             `json:"ttl_ms"`
}

type ackRequest struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
