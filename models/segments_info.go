package models

// SegmentsInfo holds the per-model segment lists produced by the external
// targeting models. The engine only consumes these lists; it never computes
// them.
type SegmentsInfo struct {
	TextClassificationSegments  SegmentList `json:"text_classification_segments"`
	EpsilonGreedyBanditSegments SegmentList `json:"epsilon_greedy_bandit_segments"`
	PurchaseIntentSegments      SegmentList `json:"purchase_intent_segments"`
}
