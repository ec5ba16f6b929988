package models

type Report struct {
	ReportID     string `dynamodbav:"reportId" json:"reportId"`
	ReporterID   string `dynamodbav:"reporterId" json:"reporterId"`
	TargetUserID string `dynamodbav:"targetUserId" json:"targetUserId"`
	Reason       string `dynamodbav:"reason" json:"reason"`
	CreatedAt    string `dynamodbav:"createdAt" json:"createdAt"`
}

// ReportsTable is the DynamoDB table name for profile reports
const ReportsTable = "Reports"
