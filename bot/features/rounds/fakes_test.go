package rounds

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"betrounds/models"
	"betrounds/service"

	"github.com/bwmarrin/discordgo"
)

type recordedResponse struct {
	interactionID string
	resp          *discordgo.InteractionResponse
}

type recordedFollowup struct {
	interactionID string
	params        *discordgo.WebhookParams
}

type recordedDM struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

// fakeSession records every Discord call made by the feature
type fakeSession struct {
	mu        sync.Mutex
	responses []recordedResponse
	followups []recordedFollowup
	edits     []*discordgo.MessageEdit
	deleted   []string
	dms       []recordedDM
	nextMsgID int
}

func (f *fakeSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, recordedResponse{interactionID: interaction.ID, resp: resp})
	return nil
}

func (f *fakeSession) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, recordedFollowup{interactionID: interaction.ID, params: data})
	f.nextMsgID++
	return &discordgo.Message{ID: fmt.Sprintf("%d", 5000+f.nextMsgID-1), ChannelID: "10"}, nil
}

func (f *fakeSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: interaction.ID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms = append(f.dms, recordedDM{channelID: channelID, embed: embed})
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeSession) responseTo(interactionID string) *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.responses {
		if r.interactionID == interactionID {
			return r.resp
		}
	}
	return nil
}

func (f *fakeSession) followupTo(interactionID, contains string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.followups {
		if r.interactionID == interactionID && strings.Contains(r.params.Content, contains) {
			return true
		}
	}
	return false
}

func (f *fakeSession) lastEdit() *discordgo.MessageEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return nil
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeSession) dmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dms)
}

// memStore is a minimal in-memory round.Store
type memStore struct {
	mu       sync.Mutex
	balances map[int64]int64
	rounds   map[int64]*models.Round
	wagers   map[int64][]*models.RoundWager
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[int64]int64),
		rounds:   make(map[int64]*models.Round),
		wagers:   make(map[int64][]*models.RoundWager),
	}
}

func (m *memStore) balance(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[id]; ok {
		return b
	}
	return 1000
}

func (m *memStore) CreateRound(ctx context.Context, round *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	round.Stage = models.RoundStageOpen
	r := *round
	m.rounds[round.MessageID] = &r
	return nil
}

func (m *memStore) HasWagered(ctx context.Context, roundID, discordID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wagers[roundID] {
		if w.DiscordID == discordID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) PlaceWager(ctx context.Context, req service.WagerRequest) (*models.RoundWager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[req.DiscordID]
	if !ok {
		balance = 1000
	}
	if balance < req.Amount {
		return nil, service.ErrInsufficientFunds
	}
	m.balances[req.DiscordID] = balance - req.Amount
	w := &models.RoundWager{
		ID:           int64(len(m.wagers[req.RoundID]) + 1),
		RoundID:      req.RoundID,
		DiscordID:    req.DiscordID,
		SideIndex:    req.SideIndex,
		Amount:       req.Amount,
		PooledAmount: req.Amount,
	}
	m.wagers[req.RoundID] = append(m.wagers[req.RoundID], w)
	return w, nil
}

func (m *memStore) RoundOdds(ctx context.Context, roundID int64) (*models.RoundOdds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return service.ComputeOdds(m.rounds[roundID].Sides, m.wagers[roundID], service.DefaultFallbackMultiplier), nil
}

func (m *memStore) MarkStopped(ctx context.Context, roundID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[roundID].Stage = models.RoundStageStopped
	return nil
}

func (m *memStore) Settle(ctx context.Context, roundID int64, outcome models.Outcome) (*models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	round := m.rounds[roundID]
	odds := service.ComputeOdds(round.Sides, m.wagers[roundID], service.DefaultFallbackMultiplier)
	settlement := &models.Settlement{RoundID: roundID, Outcome: outcome, Odds: odds}
	for _, w := range m.wagers[roundID] {
		p := &models.WagerPayout{WagerID: w.ID, DiscordID: w.DiscordID, SideIndex: w.SideIndex, Amount: w.Amount, PooledAmount: w.PooledAmount}
		switch {
		case outcome.IsRefund():
			p.Payout, p.Refunded = w.PooledAmount, true
		case outcome.Side == w.SideIndex:
			p.Payout, p.Won = service.WinningPayout(w.PooledAmount, odds.Sides[w.SideIndex], odds.TotalPool), true
		}
		m.balances[w.DiscordID] += p.Payout
		p.NewBalance = m.balances[w.DiscordID]
		settlement.Payouts = append(settlement.Payouts, p)
	}
	round.Stage = models.RoundStageResolved
	return settlement, nil
}

func operator() *discordgo.Member {
	return &discordgo.Member{
		User:        &discordgo.User{ID: "1", Username: "host"},
		Permissions: manageGuild,
	}
}

func bettor(id string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: "bettor" + id}}
}

func slashBet(sides string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:      "cmd",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "77",
		Member:  operator(),
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "bet",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "sides", Type: discordgo.ApplicationCommandOptionString, Value: sides},
			},
		},
	}}
}

func sideButton(interactionID, customID string, member *discordgo.Member) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:     interactionID,
		Type:   discordgo.InteractionMessageComponent,
		Member: member,
		Data:   discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func amountSubmit(interactionID, key, amount string, member *discordgo.Member) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:     interactionID,
		Type:   discordgo.InteractionModalSubmit,
		Member: member,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: amountModalPrefix + key,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: amountInputID, Value: amount},
				}},
			},
		},
	}}
}

func messageCommand(name, targetID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:     "msgcmd-" + name,
		Type:   discordgo.InteractionApplicationCommand,
		Member: operator(),
		Data: discordgo.ApplicationCommandInteractionData{
			Name:     name,
			TargetID: targetID,
		},
	}}
}

func outcomeSelect(roundID, value string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:     "select",
		Type:   discordgo.InteractionMessageComponent,
		Member: operator(),
		Data: discordgo.MessageComponentInteractionData{
			CustomID: endSelectPrefix + roundID,
			Values:   []string{value},
		},
	}}
}
