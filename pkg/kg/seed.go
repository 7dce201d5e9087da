package kg

import "fmt"

// SeedSource labels all relations created by Seed.
const SeedSource = "seed"

// Seed populates g with the built-in demo dataset: one client with two
// accounts, three transactions, and the two compliance rules those
// transactions reference.
func Seed(g *Graph) error {
	entities := []struct {
		kind  string
		id    string
		attrs map[string]Value
	}{
		{"client", "Client_A", map[string]Value{
			"name":      String("Client A"),
			"riskLevel": String("medium"),
			"kycStatus": String("verified"),
		}},
		{"account", "Account_A1", map[string]Value{
			"accountType": String("checking"),
			"status":      String("active"),
		}},
		{"account", "Account_A2", map[string]Value{
			"accountType": String("savings"),
			"status":      String("active"),
		}},
		{"rule", "Rule_KYC", map[string]Value{
			"name":   String("KYC Verification"),
			"status": String("active"),
		}},
		{"rule", "Rule_AML", map[string]Value{
			"name":   String("AML Threshold Check"),
			"status": String("active"),
		}},
		{"transaction", "Transaction_T001", map[string]Value{
			"amount":      Number("9500.00"),
			"currency":    String("USD"),
			"date":        Date("2024-05-10"),
			"status":      String("completed"),
			"isCompliant": Bool(true),
		}},
		{"transaction", "Transaction_T002", map[string]Value{
			"amount":      Number("15000.00"),
			"currency":    String("USD"),
			"date":        Date("2024-05-12"),
			"status":      String("completed"),
			"isCompliant": Bool(false),
		}},
		{"transaction", "Transaction_T003", map[string]Value{
			"amount":      Number("500.00"),
			"currency":    String("EUR"),
			"date":        Date("2024-05-15"),
			"status":      String("completed"),
			"isCompliant": Bool(true),
		}},
	}

	relations := []struct {
		subject   string
		predicate string
		object    Value
	}{
		{"Client_A", "hasAccount", Ref("Account_A1")},
		{"Client_A", "hasAccount", Ref("Account_A2")},
		{"Account_A1", "hasTransaction", Ref("Transaction_T001")},
		{"Account_A1", "hasTransaction", Ref("Transaction_T002")},
		{"Account_A2", "hasTransaction", Ref("Transaction_T003")},
		{"Transaction_T001", "isCompliantWith", Ref("Rule_KYC")},
		{"Transaction_T002", "isCompliantWith", Ref("Rule_KYC")},
		{"Transaction_T002", "violatesRule", Ref("Rule_AML")},
		{"Transaction_T003", "isCompliantWith", Ref("Rule_KYC")},
	}

	for _, e := range entities {
		if err := g.AddEntityFrom(SeedSource, e.kind, e.id, e.attrs); err != nil {
			return fmt.Errorf("failed to seed entity %s: %w", e.id, err)
		}
	}
	for _, r := range relations {
		if err := g.AddRelationFrom(SeedSource, r.subject, r.predicate, r.object); err != nil {
			return fmt.Errorf("failed to seed relation %s %s: %w", r.subject, r.predicate, err)
		}
	}
	return nil
}
